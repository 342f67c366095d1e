// Package client is the Go client for the sync server: it keeps a replicated
// session snapshot current from the server's patch stream and smooths remote
// players for rendering. The local player's movement lives in
// client/movement; this package only reports it upstream.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/client/interp"
	"github.com/vaultrun/netcode/delta"
	"github.com/vaultrun/netcode/wire"
)

// ServerError is an in-band rejection from the server.
type ServerError struct {
	Code    wire.ErrorCode
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request: %s (%s)", e.Message, e.Code)
}

// Event is one server notification, delivered in arrival order. Payload is
// the typed form from wire.ParseServerPayload.
type Event struct {
	Type    wire.MessageType
	Payload any
}

// defaultHandshakeTimeout bounds the ack and welcome reads in CreateRoom
// and JoinRoom.
const defaultHandshakeTimeout = 10 * time.Second

// Client maintains one connection's replicated view of a session.
type Client struct {
	sock             *websocket.Conn
	handshakeTimeout time.Duration

	wmu sync.Mutex // serializes socket writes

	mu      sync.Mutex
	world   wire.SessionSnapshot
	remotes map[string]*interp.Interpolator
	tick    uint64

	sessionID string
	roomCode  string
	clientID  string
	spawn     wire.Vec3

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the websocket. The client is unbound until CreateRoom or
// JoinRoom succeeds.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	sock, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{
		sock:             sock,
		handshakeTimeout: defaultHandshakeTimeout,
		world:            wire.SessionSnapshot{Players: map[string]wire.PlayerSnapshot{}},
		remotes:          make(map[string]*interp.Interpolator),
		events:           make(chan Event, 64),
		done:             make(chan struct{}),
	}, nil
}

// CreateRoom opens a fresh session with the caller as its first player.
func (c *Client) CreateRoom(name string, skin int) error {
	if err := c.sendControl(wire.MsgCreateSession, wire.CreateSessionPayload{DisplayName: name, SkinID: skin}); err != nil {
		return err
	}
	return c.handshake(wire.MsgCreateAck)
}

// JoinRoom enters an existing session by room code.
func (c *Client) JoinRoom(code, name string, skin int) error {
	if err := c.sendControl(wire.MsgJoinSession, wire.JoinSessionPayload{Code: code, DisplayName: name, SkinID: skin}); err != nil {
		return err
	}
	return c.handshake(wire.MsgJoinAck)
}

// handshake consumes the ack and the welcome snapshot, then starts the read
// loop. Until the ack lands, the server sends nothing else on this socket.
// Both reads are bounded, so a mute server fails the call instead of
// hanging it.
func (c *Client) handshake(want wire.MessageType) error {
	c.sock.SetReadDeadline(time.Now().Add(c.handshakeTimeout))

	env, err := c.readControl()
	if err != nil {
		return err
	}
	if env.Type == wire.MsgError {
		var p wire.ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", wire.ErrMalformedMessage, err)
		}
		return &ServerError{Code: p.Code, Message: p.Message}
	}
	if env.Type != want {
		return fmt.Errorf("%w: expected %s, got %s", wire.ErrMalformedMessage, want, env.Type)
	}

	// Create and join acks share one shape.
	var ack wire.JoinAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrMalformedMessage, err)
	}
	c.sessionID = ack.SessionID
	c.roomCode = ack.RoomCode
	c.clientID = ack.ClientID
	c.spawn = ack.Spawn

	frame, err := c.readFrame()
	if err != nil {
		return err
	}
	if frame.Kind != wire.FrameSnapshot {
		return fmt.Errorf("%w: welcome frame kind %d", wire.ErrMalformedMessage, frame.Kind)
	}

	c.mu.Lock()
	c.world = *frame.Snapshot
	c.tick = frame.Tick
	c.syncInterpolatorsLocked()
	c.mu.Unlock()

	log.Info().
		Str("session_id", c.sessionID).
		Str("room_code", c.roomCode).
		Str("client_id", c.clientID).
		Msg("bound to session")

	// The patch stream has no read deadline; clear the handshake bound
	// before the read loop takes the socket.
	c.sock.SetReadDeadline(time.Time{})
	go c.run()
	return nil
}

func (c *Client) readControl() (wire.Envelope, error) {
	for {
		kind, data, err := c.sock.ReadMessage()
		if err != nil {
			return wire.Envelope{}, fmt.Errorf("handshake read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		return wire.Decode(data)
	}
}

func (c *Client) readFrame() (wire.StateFrame, error) {
	for {
		kind, data, err := c.sock.ReadMessage()
		if err != nil {
			return wire.StateFrame{}, fmt.Errorf("handshake read: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		return wire.DecodeStateFrame(data)
	}
}

func (c *Client) run() {
	defer close(c.events)
	defer c.finish()

	for {
		kind, data, err := c.sock.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("client_id", c.clientID).Msg("connection read closed")
			return
		}
		switch kind {
		case websocket.TextMessage:
			c.handleControl(data)
		case websocket.BinaryMessage:
			c.handleFrame(data)
		}
	}
}

func (c *Client) handleControl(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable control message")
		return
	}
	payload, err := wire.ParseServerPayload(env)
	if err != nil {
		log.Warn().Err(err).Str("type", string(env.Type)).Msg("unparseable control payload")
		return
	}

	// Control messages keep the world fresh between patch ticks; the frame
	// stream re-states the same facts and both paths are idempotent.
	c.mu.Lock()
	switch p := payload.(type) {
	case wire.PlayerAddedPayload:
		c.world.Players[p.Player.ID] = p.Player
		c.syncInterpolatorsLocked()
	case wire.PlayerRemovedPayload:
		delete(c.world.Players, p.ID)
		delete(c.remotes, p.ID)
	case wire.GameStateChangedPayload:
		c.world.GameState = p.State
		if p.State != wire.GameCountdown {
			c.world.Countdown = 0
		}
	case wire.CountdownTickPayload:
		c.world.Countdown = p.Value
	}
	c.mu.Unlock()

	c.emit(Event{Type: env.Type, Payload: payload})
}

func (c *Client) handleFrame(data []byte) {
	frame, err := wire.DecodeStateFrame(data)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable state frame")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch frame.Kind {
	case wire.FrameSnapshot:
		c.world = *frame.Snapshot
	case wire.FrameDelta:
		next, err := delta.Apply(c.world, *frame.Delta)
		if err != nil {
			// Out of step with the server; hold the stale view until the
			// next full snapshot restores coherence.
			log.Warn().Err(err).Uint64("tick", frame.Tick).Msg("delta did not apply")
			return
		}
		c.world = next
	}
	c.tick = frame.Tick
	c.syncInterpolatorsLocked()
}

// syncInterpolatorsLocked retargets every remote player's interpolator and
// drops the ones whose players left. Callers hold c.mu.
func (c *Client) syncInterpolatorsLocked() {
	for id, p := range c.world.Players {
		if id == c.clientID {
			continue
		}
		ip, ok := c.remotes[id]
		if !ok {
			ip = interp.New(interp.DefaultPosRate, interp.DefaultYawRate)
			c.remotes[id] = ip
		}
		ip.SetTarget(wire.Vec3{X: p.X, Y: p.Y, Z: p.Z}, p.RotY)
	}
	for id := range c.remotes {
		if _, ok := c.world.Players[id]; !ok {
			delete(c.remotes, id)
		}
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Debug().Str("type", string(ev.Type)).Msg("event buffer full, dropping")
	}
}

func (c *Client) finish() {
	c.closeOnce.Do(func() { close(c.done) })
}

// SetReady toggles the lobby ready flag.
func (c *Client) SetReady(ready bool) error {
	return c.sendControl(wire.MsgSetReady, wire.SetReadyPayload{Ready: ready})
}

// SendTransform reports the local player's pose. Call at roughly 20 Hz; the
// server coalesces whatever arrives between its broadcast ticks.
func (c *Client) SendTransform(p wire.UpdateTransformPayload) error {
	return c.sendControl(wire.MsgUpdateTransform, p)
}

// Leave tells the server to drop us; the server closes the socket after.
func (c *Client) Leave() error {
	return c.sendControl(wire.MsgLeaveSession, nil)
}

func (c *Client) sendControl(typ wire.MessageType, payload any) error {
	data, err := wire.Encode(typ, payload)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// Close tears the connection down. The event channel closes once the read
// loop drains.
func (c *Client) Close() {
	c.sock.Close()
}

// Events delivers server notifications. Slow consumers lose events rather
// than stalling the connection; the snapshot accessors stay authoritative.
func (c *Client) Events() <-chan Event { return c.events }

// Done closes when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// ClientID returns our player id within the session.
func (c *Client) ClientID() string { return c.clientID }

// SessionID returns the bound session id.
func (c *Client) SessionID() string { return c.sessionID }

// RoomCode returns the join code of the bound session.
func (c *Client) RoomCode() string { return c.roomCode }

// Spawn returns the position assigned at join.
func (c *Client) Spawn() wire.Vec3 { return c.spawn }

// Tick returns the last applied frame sequence number.
func (c *Client) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Snapshot returns a deep copy of the replicated session state.
func (c *Client) Snapshot() wire.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return delta.Clone(c.world)
}

// GameState returns the lobby phase and the countdown value.
func (c *Client) GameState() (wire.GameState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.world.GameState, c.world.Countdown
}

// RemotePose advances a remote player's smoothing by dt seconds and returns
// the pose to render. ok is false for unknown ids and for the local player.
func (c *Client) RemotePose(id string, dt float64) (pos wire.Vec3, yaw float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ip, found := c.remotes[id]
	if !found {
		return wire.Vec3{}, 0, false
	}
	pos, yaw = ip.Step(dt)
	return pos, yaw, true
}
