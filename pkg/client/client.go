// Package client is the peer side of the negotiation protocol: a websocket
// client that keeps one logical connection alive across drops, replays its
// subscriptions after every reconnect and routes inbound frames to handlers
// by message type.
package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/pkg/protocol"
)

// ErrNotConnected is returned by Send while there is no live connection.
// Actions are never queued for later.
var ErrNotConnected = errors.New("client: not connected")

// State is the connectivity state surfaced to callers.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Authenticating
	Subscribed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticating:
		return "authenticating"
	case Subscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Handler receives one inbound frame.  Handlers run on the read goroutine
// and must not block.
type Handler func(env protocol.Envelope)

// Options configures a ReconnectingClient.
type Options struct {
	URL    string
	Header http.Header

	// UserID and Token are the cached identity sent on every connect.
	UserID string
	Token  string

	BaseBackoff  time.Duration // default 1s
	MaxBackoff   time.Duration // default 32s
	WriteTimeout time.Duration // default 10s

	Dialer        *websocket.Dialer
	OnStateChange func(State)
	Log           zerolog.Logger
}

// ReconnectingClient maintains a single connection with automatic
// reconnect.  Its methods are safe for concurrent use.
type ReconnectingClient struct {
	opts Options

	mu       sync.Mutex
	state    State
	ws       *websocket.Conn
	userID   string
	token    string
	authRef  string
	topics   []protocol.Topic
	handlers map[protocol.Type][]Handler

	writeMu sync.Mutex
	refs    atomic.Uint64
}

func New(opts Options) *ReconnectingClient {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 32 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &ReconnectingClient{
		opts:     opts,
		userID:   opts.UserID,
		token:    opts.Token,
		handlers: make(map[protocol.Type][]Handler),
	}
}

// On registers h for frames of type t.
func (c *ReconnectingClient) On(t protocol.Type, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = append(c.handlers[t], h)
}

// State returns the current connectivity state.
func (c *ReconnectingClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Topics returns the remembered subscriptions.
func (c *ReconnectingClient) Topics() []protocol.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Topic(nil), c.topics...)
}

// SetIdentity caches the credential used on every connect and, when a
// connection is live, authenticates it now.
func (c *ReconnectingClient) SetIdentity(userID, token string) error {
	c.mu.Lock()
	c.userID, c.token = userID, token
	live := c.ws != nil
	c.mu.Unlock()
	if !live {
		return nil
	}
	return c.authenticate()
}

// Subscribe remembers topic and subscribes to it now when the connection is
// authenticated.  Remembered topics are replayed after every reconnect.
func (c *ReconnectingClient) Subscribe(topic protocol.Topic) error {
	c.mu.Lock()
	known := false
	for _, t := range c.topics {
		if t == topic {
			known = true
			break
		}
	}
	if !known {
		c.topics = append(c.topics, topic)
	}
	live := c.state == Subscribed
	c.mu.Unlock()
	if !live {
		return nil
	}
	_, err := c.Send(protocol.Subscribe{Topic: topic})
	return err
}

// Unsubscribe forgets topic and unsubscribes from it when connected.
func (c *ReconnectingClient) Unsubscribe(topic protocol.Topic) error {
	c.mu.Lock()
	for i, t := range c.topics {
		if t == topic {
			c.topics = append(c.topics[:i], c.topics[i+1:]...)
			break
		}
	}
	live := c.state == Subscribed
	c.mu.Unlock()
	if !live {
		return nil
	}
	_, err := c.Send(protocol.Unsubscribe{Topic: topic})
	return err
}

// Send writes msg with a fresh ref and returns that ref, which the server
// echoes on the matching ack or error frame.
func (c *ReconnectingClient) Send(msg protocol.Message) (string, error) {
	ref := "c" + strconv.FormatUint(c.refs.Add(1), 10)
	return ref, c.send(ref, msg)
}

func (c *ReconnectingClient) send(ref string, msg protocol.Message) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		c.opts.Log.Warn().Str("type", string(msg.Type())).Msg("send while disconnected")
		return ErrNotConnected
	}
	frame, err := protocol.Encode(protocol.Envelope{Ref: ref, Message: msg})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.opts.Log.Warn().Err(err).Str("type", string(msg.Type())).Msg("write failed")
		_ = ws.Close()
		return ErrNotConnected
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is cancelled.  The first
// attempt is immediate; after a failed attempt or a dropped connection it
// waits BaseBackoff doubled per consecutive failure, capped at MaxBackoff.
// Reaching connected resets the count.
func (c *ReconnectingClient) Run(ctx context.Context) error {
	failures := 0
	for {
		if failures > 0 {
			wait := c.backoff(failures)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.setState(Connecting)
		ws, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			failures++
			c.setState(Disconnected)
			c.opts.Log.Warn().Err(err).Int("attempt", failures).Dur("retry_in", c.backoff(failures)).Msg("dial failed")
			continue
		}
		failures = 0

		c.attach(ws)
		stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
		err = c.readLoop(ws)
		stop()
		c.detach(ws)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		c.opts.Log.Warn().Err(err).Dur("retry_in", c.backoff(failures)).Msg("connection lost")
	}
}

// backoff is the wait before the next dial after n consecutive failures.
func (c *ReconnectingClient) backoff(n int) time.Duration {
	d := c.opts.BaseBackoff
	for i := 1; i < n && d < c.opts.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.opts.MaxBackoff {
		d = c.opts.MaxBackoff
	}
	return d
}

func (c *ReconnectingClient) attach(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	hasToken := c.token != ""
	c.mu.Unlock()
	c.setState(Connected)
	if hasToken {
		if err := c.authenticate(); err != nil {
			c.opts.Log.Warn().Err(err).Msg("auth not sent")
		}
	}
}

func (c *ReconnectingClient) detach(ws *websocket.Conn) {
	_ = ws.Close()
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.authRef = ""
	c.mu.Unlock()
	c.setState(Disconnected)
}

func (c *ReconnectingClient) authenticate() error {
	ref := "auth-" + strconv.FormatUint(c.refs.Add(1), 10)
	c.mu.Lock()
	c.authRef = ref
	msg := protocol.Auth{UserID: c.userID, Token: c.token}
	c.mu.Unlock()
	c.setState(Authenticating)
	return c.send(ref, msg)
}

func (c *ReconnectingClient) readLoop(ws *websocket.Conn) error {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		env, err := protocol.Decode(data)
		if err != nil {
			c.opts.Log.Debug().Err(err).Msg("ignoring frame")
			continue
		}
		c.handle(env)
	}
}

func (c *ReconnectingClient) handle(env protocol.Envelope) {
	switch m := env.Message.(type) {
	case protocol.AuthSuccess:
		c.onAuthenticated(m.UserID)
	case protocol.Error:
		c.mu.Lock()
		authFailed := env.Ref != "" && env.Ref == c.authRef
		if authFailed {
			c.authRef = ""
		}
		c.mu.Unlock()
		if authFailed {
			c.opts.Log.Warn().Str("code", m.Code).Msg("authentication rejected")
			c.setState(Connected)
		}
	}

	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[env.Message.Type()]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(env)
	}
}

// onAuthenticated replays every remembered subscription, then reports the
// connection as subscribed.  Subscribe and Unsubscribe calls that land while
// the replay is in flight only touch the remembered set, so the loop diffs
// that set against what it has sent until they match, and moves to
// Subscribed under the same lock as the final check.
func (c *ReconnectingClient) onAuthenticated(userID string) {
	c.mu.Lock()
	c.authRef = ""
	c.mu.Unlock()

	sent := make(map[protocol.Topic]bool)
	for {
		c.mu.Lock()
		if c.state != Authenticating {
			c.mu.Unlock()
			return
		}
		want := make(map[protocol.Topic]bool, len(c.topics))
		var add, drop []protocol.Topic
		for _, t := range c.topics {
			want[t] = true
			if !sent[t] {
				add = append(add, t)
			}
		}
		for t := range sent {
			if !want[t] {
				drop = append(drop, t)
			}
		}
		if len(add) == 0 && len(drop) == 0 {
			cb := c.setStateLocked(Subscribed)
			c.mu.Unlock()
			c.opts.Log.Debug().Str("user_id", userID).Int("topics", len(sent)).Msg("subscriptions restored")
			if cb != nil {
				cb(Subscribed)
			}
			return
		}
		c.mu.Unlock()

		for _, t := range add {
			if _, err := c.Send(protocol.Subscribe{Topic: t}); err != nil {
				return
			}
			sent[t] = true
		}
		for _, t := range drop {
			if _, err := c.Send(protocol.Unsubscribe{Topic: t}); err != nil {
				return
			}
			delete(sent, t)
		}
	}
}

func (c *ReconnectingClient) setState(s State) {
	c.mu.Lock()
	cb := c.setStateLocked(s)
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// setStateLocked records s and returns the callback to run once c.mu is
// released, or nil when nothing changed.
func (c *ReconnectingClient) setStateLocked(s State) func(State) {
	if c.state == s {
		return nil
	}
	c.state = s
	return c.opts.OnStateChange
}
