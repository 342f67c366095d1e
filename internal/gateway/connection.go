// Package gateway terminates websocket connections and binds them to
// sessions. One goroutine per connection reads and dispatches inbound
// messages; a second drains the outbound queue.
package gateway

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrConnectionLost marks a websocket read failure. The peer is treated
// as having left its session.
var ErrConnectionLost = errors.New("connection lost")

// ConnConfig holds configuration for websocket connections.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the default websocket configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendQueueSize:   128,
		CheckOrigin: func(r *http.Request) bool {
			// Game clients connect from arbitrary origins.
			return true
		},
	}
}

// entry is one queued outbound message. Control messages leave as text
// frames, state frames as binary.
type entry struct {
	binary bool
	data   []byte
}

// Connection wraps one websocket and implements session.Conn. Sends never
// block: a full queue drops its oldest entry and raises the resync flag so
// the next patch tick replaces whatever was lost with a full snapshot.
type Connection struct {
	id   uuid.UUID
	sock *websocket.Conn
	cfg  ConnConfig

	send   chan entry
	resync atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(sock *websocket.Conn, cfg ConnConfig) *Connection {
	return &Connection{
		id:     uuid.New(),
		sock:   sock,
		cfg:    cfg,
		send:   make(chan entry, cfg.SendQueueSize),
		closed: make(chan struct{}),
	}
}

// SendControl enqueues a JSON control message.
func (c *Connection) SendControl(data []byte) {
	c.enqueue(entry{data: data})
}

// SendState enqueues a binary state frame.
func (c *Connection) SendState(data []byte) {
	c.enqueue(entry{binary: true, data: data})
}

func (c *Connection) enqueue(e entry) {
	select {
	case c.send <- e:
		return
	default:
	}

	// Queue full. Drop the oldest entry so the connection stays alive and
	// current; the resync flag covers the hole.
	c.resync.Store(true)
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- e:
	default:
		// A concurrent sender refilled the freed slot. The new entry is
		// dropped too; the flag is already up.
	}
	log.Warn().
		Str("connection_id", c.id.String()).
		Msg("send queue overflow, dropped oldest message")
}

// NeedsResync reports a queue overflow since the last full snapshot.
func (c *Connection) NeedsResync() bool { return c.resync.Load() }

// TakeResync reports and clears the overflow flag.
func (c *Connection) TakeResync() bool { return c.resync.Swap(false) }

// Close signals both pumps to stop. Queued messages flush before the socket
// closes. Idempotent and non-blocking, so the session loop may call it.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump owns all socket writes, including pings, and is the only place
// the socket is closed.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.flush()
			c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case e := <-c.send:
			if err := c.write(e); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id.String()).
					Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id.String()).
					Msg("ping failed")
				return
			}
		}
	}
}

// flush drains whatever is still queued at close time, so terminal messages
// such as the session-closed notice reach the client.
func (c *Connection) flush() {
	for {
		select {
		case e := <-c.send:
			if err := c.write(e); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(e entry) error {
	c.sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	kind := websocket.TextMessage
	if e.binary {
		kind = websocket.BinaryMessage
	}
	return c.sock.WriteMessage(kind, e.data)
}
