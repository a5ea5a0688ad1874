package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/internal/apperr"
)

// ConnOptions tunes a websocket connection.
type ConnOptions struct {
	// Heartbeat is the idle window: a connection with no inbound frame or
	// pong for this long is closed.  Pings go out at 9/10 of it.
	Heartbeat    time.Duration
	SendQueue    int
	WriteTimeout time.Duration
	MaxFrame     int64
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 60 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxFrame <= 0 {
		o.MaxFrame = 64 << 10
	}
	return o
}

// Conn is a Handle backed by a gorilla websocket.  Writes go through a
// buffered queue drained by a single goroutine, so frames sent to one Conn
// keep their order.
type Conn struct {
	id   string
	ws   *websocket.Conn
	opts ConnOptions
	log  zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps ws.  The caller must start WritePump and read with ReadFrame.
func NewConn(id string, ws *websocket.Conn, opts ConnOptions, log zerolog.Logger) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		id:   id,
		ws:   ws,
		opts: opts,
		log:  log.With().Str("conn_id", id).Logger(),
		send: make(chan []byte, opts.SendQueue),
		done: make(chan struct{}),
	}
	ws.SetReadLimit(opts.MaxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(opts.Heartbeat))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.Heartbeat))
	})
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues frame for writing.  It fails with ErrTransport once the
// connection is closed and with ErrSlowConsumer when the queue is full.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return apperr.ErrTransport
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return apperr.ErrTransport
	default:
		return apperr.ErrSlowConsumer
	}
}

// Close stops the write pump, which closes the socket.  Safe to call more
// than once and from any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} { return c.done }

// ReadFrame blocks for the next text frame and extends the idle deadline
// when one arrives.
func (c *Conn) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.Heartbeat))
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

// WritePump drains the send queue and pings on the heartbeat.  It returns
// after Close or the first failed write, leaving the socket closed.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.opts.Heartbeat * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}
