package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires requests whose TTL has passed.
type Sweeper struct {
	Service  *NegotiationService
	Interval time.Duration
	Log      zerolog.Logger
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Service.ExpireStaleRequests(ctx)
	if err != nil && ctx.Err() == nil {
		s.Log.Warn().Err(err).Int("expired", n).Msg("expiry sweep finished with errors")
		return
	}
	if n > 0 {
		s.Log.Info().Int("expired", n).Msg("expiry sweep")
	}
}
