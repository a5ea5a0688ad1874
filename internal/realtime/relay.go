package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// RedisRelay shares broadcast frames between processes over one Redis
// Pub/Sub channel.  Each process tags what it publishes with its origin id
// and skips its own frames on the way back in, since the local Dispatcher
// has already delivered them.  Redis Pub/Sub is itself at-most-once, which
// matches the local delivery guarantee.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	disp    *Dispatcher
	log     zerolog.Logger
}

type relayFrame struct {
	Origin string          `json:"origin"`
	Topic  protocol.Topic  `json:"topic"`
	Frame  json.RawMessage `json:"frame"`
}

func NewRedisRelay(rdb *redis.Client, channel string, disp *Dispatcher, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		disp:    disp,
		log:     log.With().Str("component", "relay").Str("channel", channel).Logger(),
	}
}

// Forward implements Forwarder.
func (r *RedisRelay) Forward(ctx context.Context, topic protocol.Topic, frame []byte) error {
	body, err := json.Marshal(relayFrame{Origin: r.origin, Topic: topic, Frame: frame})
	if err != nil {
		return fmt.Errorf("relay marshal: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and, once Redis has confirmed the
// subscription, delivers incoming foreign frames locally until ctx ends.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("relay subscribe: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handle(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) handle(payload string) {
	var f relayFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		r.log.Warn().Err(err).Msg("skipping malformed relay frame")
		return
	}
	if f.Origin == r.origin {
		return
	}
	r.disp.Deliver(f.Topic, f.Frame)
}
