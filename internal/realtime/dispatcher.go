package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// Forwarder carries encoded broadcast frames to other processes.
type Forwarder interface {
	Forward(ctx context.Context, topic protocol.Topic, frame []byte) error
}

// Dispatcher fans frames out to the connections subscribed to a topic.
// Delivery is at-most-once per live connection: a connection that is not
// registered when Publish runs misses the frame.
type Dispatcher struct {
	reg *Registry
	log zerolog.Logger
	fwd Forwarder
}

func NewDispatcher(reg *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log.With().Str("component", "dispatcher").Logger()}
}

// SetForwarder enables cross-process fan-out.  Call before serving traffic.
func (d *Dispatcher) SetForwarder(f Forwarder) { d.fwd = f }

// Publish encodes msg once and delivers it to every local subscriber of
// topic, then hands it to the forwarder if one is set.  It never fails:
// encoding and forwarding problems are logged.
func (d *Dispatcher) Publish(ctx context.Context, topic protocol.Topic, msg protocol.Message) {
	frame, err := protocol.Encode(protocol.Envelope{Topic: topic, Message: msg})
	if err != nil {
		d.log.Error().Err(err).Str("topic", topic.String()).Msg("encode broadcast")
		return
	}
	d.Deliver(topic, frame)
	if d.fwd != nil {
		if err := d.fwd.Forward(ctx, topic, frame); err != nil {
			d.log.Warn().Err(err).Str("topic", topic.String()).Msg("forward broadcast")
		}
	}
}

// Deliver writes an already encoded frame to local subscribers only and
// returns how many accepted it.  A handle whose Send fails is evicted and
// closed; the remaining handles still receive the frame.
func (d *Dispatcher) Deliver(topic protocol.Topic, frame []byte) int {
	delivered := 0
	for _, h := range d.reg.ConnectionsFor(topic) {
		if err := h.Send(frame); err != nil {
			d.log.Warn().Err(err).
				Str("conn_id", h.ID()).
				Str("topic", topic.String()).
				Msg("dropping connection after failed write")
			if d.reg.Evict(h) {
				_ = h.Close()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo writes msg directly to one handle, outside any topic.  It is used
// for replies to the connection that issued an action.
func SendTo(h Handle, ref string, msg protocol.Message) error {
	frame, err := protocol.Encode(protocol.Envelope{Ref: ref, Message: msg})
	if err != nil {
		return err
	}
	return h.Send(frame)
}
