// Package realtime tracks live websocket connections and fans broadcast
// frames out to them.  A Registry is created once per process and handed to
// every component that needs it; nothing in this package is global.
package realtime

import (
	"sync"
	"time"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// Handle is the write side of a live connection.  Send must not block on the
// network; implementations queue the frame and report a full queue or a
// closed connection as an error.
type Handle interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

type entry struct {
	handle   Handle
	userID   string
	lastSeen time.Time
	topics   map[protocol.Topic]struct{}
}

// Registry indexes connections by id and by topic.  All methods are safe for
// concurrent use and perform no I/O while holding the lock.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	topics map[protocol.Topic]map[string]struct{}
	now    func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*entry),
		topics: make(map[protocol.Topic]map[string]struct{}),
		now:    time.Now,
	}
}

// Register adds an unauthenticated connection.  Registering an id that is
// already present swaps in the new handle and keeps identity and
// subscriptions.
func (r *Registry) Register(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.handle = h
		e.lastSeen = r.now()
		return
	}
	r.conns[id] = &entry{handle: h, lastSeen: r.now(), topics: make(map[protocol.Topic]struct{})}
}

// Authenticate attaches userID to the connection.  Re-authenticating as the
// same user is a no-op.
func (r *Registry) Authenticate(id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return apperr.ErrUnknownConnection
	}
	if e.userID != "" && e.userID != userID {
		return apperr.ErrAlreadyAuthenticated
	}
	e.userID = userID
	return nil
}

// Subscribe adds topic to the connection's subscriptions.
func (r *Registry) Subscribe(id string, topic protocol.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return apperr.ErrUnknownConnection
	}
	e.topics[topic] = struct{}{}
	set, ok := r.topics[topic]
	if !ok {
		set = make(map[string]struct{})
		r.topics[topic] = set
	}
	set[id] = struct{}{}
	return nil
}

// Unsubscribe removes topic from the connection's subscriptions.
func (r *Registry) Unsubscribe(id string, topic protocol.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return apperr.ErrUnknownConnection
	}
	delete(e.topics, topic)
	r.dropFromTopic(topic, id)
	return nil
}

// Unregister removes the connection and every subscription it holds.  It
// returns the removed handle, or nil when the id was not registered.
func (r *Registry) Unregister(id string) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	for topic := range e.topics {
		r.dropFromTopic(topic, id)
	}
	delete(r.conns, id)
	return e.handle
}

// Evict unregisters h's connection only while h is still its current
// handle, so a write failure on a replaced handle cannot remove the
// connection that replaced it.
func (r *Registry) Evict(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[h.ID()]
	if !ok || e.handle != h {
		return false
	}
	for topic := range e.topics {
		r.dropFromTopic(topic, h.ID())
	}
	delete(r.conns, h.ID())
	return true
}

// ConnectionsFor returns a snapshot of the handles subscribed to topic.
// Order is undefined.
func (r *Registry) ConnectionsFor(topic protocol.Topic) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.topics[topic]
	if len(set) == 0 {
		return nil
	}
	out := make([]Handle, 0, len(set))
	for id := range set {
		if e, ok := r.conns[id]; ok {
			out = append(out, e.handle)
		}
	}
	return out
}

// Touch records inbound traffic on the connection.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	if e, ok := r.conns[id]; ok {
		e.lastSeen = r.now()
	}
	r.mu.Unlock()
}

// LastSeen reports when the connection last produced traffic.
func (r *Registry) LastSeen(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// UserOf returns the authenticated user of a connection, or "" when none.
func (r *Registry) UserOf(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.userID
	}
	return ""
}

// Topics returns the topics a connection is subscribed to.
func (r *Registry) Topics(id string) []protocol.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]protocol.Topic, 0, len(e.topics))
	for t := range e.topics {
		out = append(out, t)
	}
	return out
}

// ConnectionsOf returns the ids of connections authenticated as userID.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, e := range r.conns {
		if e.userID == userID {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// caller holds r.mu
func (r *Registry) dropFromTopic(topic protocol.Topic, id string) {
	set, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.topics, topic)
	}
}

// CloseAll unregisters every connection and closes its handle.  It is used
// on shutdown and returns how many connections were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.conns))
	for _, e := range r.conns {
		handles = append(handles, e.handle)
	}
	r.conns = make(map[string]*entry)
	r.topics = make(map[protocol.Topic]map[string]struct{})
	r.mu.Unlock()

	for _, h := range handles {
		_ = h.Close()
	}
	return len(handles)
}
