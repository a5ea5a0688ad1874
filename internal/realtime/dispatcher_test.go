package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	d := NewDispatcher(NewRegistry(), zerolog.Nop())
	assert.NotPanics(t, func() {
		d.Publish(context.Background(), protocol.RequestTopic("nobody"), protocol.RequestExpired{RequestID: "nobody"})
	})
	assert.Equal(t, 0, d.Deliver("request:nobody", []byte(`{}`)))
}

func TestPublishIsolatesFailedConnections(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())
	topic := protocol.RequestTopic("r1")

	good1, bad, good2 := newFake("g1"), newFake("bad"), newFake("g2")
	bad.fail = true
	for _, h := range []*fakeHandle{good1, bad, good2} {
		reg.Register(h.ID(), h)
		require.NoError(t, reg.Subscribe(h.ID(), topic))
	}

	d.Publish(context.Background(), topic, protocol.ResponseAccepted{RequestID: "r1", ResponseID: "x"})

	for _, h := range []*fakeHandle{good1, good2} {
		got := h.received()
		require.Len(t, got, 1)
		assert.Equal(t, topic, got[0].Topic)
		assert.Equal(t, protocol.ResponseAccepted{RequestID: "r1", ResponseID: "x"}, got[0].Message)
	}
	assert.True(t, bad.isClosed())
	assert.Equal(t, 2, reg.Len(), "failed connection is unregistered")
	assert.Len(t, reg.ConnectionsFor(topic), 2)
}

func TestPublishKeepsOrderPerConnection(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())
	h := newFake("c1")
	reg.Register("c1", h)
	require.NoError(t, reg.Subscribe("c1", "request:r1"))

	msgs := []protocol.Message{
		protocol.RequestCreated{RequestSnapshot: protocol.RequestSnapshot{ID: "r1"}},
		protocol.ResponseSubmitted{ResponseSnapshot: protocol.ResponseSnapshot{ID: "x", RequestID: "r1"}},
		protocol.ResponseAccepted{RequestID: "r1", ResponseID: "x"},
	}
	for _, m := range msgs {
		d.Publish(context.Background(), "request:r1", m)
	}
	got := h.received()
	require.Len(t, got, 3)
	for i, m := range msgs {
		assert.Equal(t, m.Type(), got[i].Message.Type())
	}
}

type recordingForwarder struct {
	topics []protocol.Topic
	err    error
}

func (f *recordingForwarder) Forward(_ context.Context, topic protocol.Topic, _ []byte) error {
	f.topics = append(f.topics, topic)
	return f.err
}

func TestPublishForwards(t *testing.T) {
	d := NewDispatcher(NewRegistry(), zerolog.Nop())
	fwd := &recordingForwarder{err: errors.New("redis down")}
	d.SetForwarder(fwd)
	d.Publish(context.Background(), "user:u1", protocol.RequestExpired{RequestID: "r"})
	assert.Equal(t, []protocol.Topic{"user:u1"}, fwd.topics)
}
