// Package session owns the canonical state of one room. All mutation flows
// through a per-session command loop; that serialization is the sole
// synchronization mechanism inside a session.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vaultrun/netcode/wire"
)

var (
	// ErrRoomFull rejects a join at max occupancy.
	ErrRoomFull = errors.New("room full")
	// ErrSessionClosed rejects commands enqueued while a session disposes.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidStateTransition marks lobby input that no longer applies,
	// such as a ready toggle after the match started. Ignored, never fatal.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// Player is one client's authoritative-trusted state within a session. The
// transform and movement fields are written only from the owning client's
// messages; the server never second-guesses them.
type Player struct {
	ID         uuid.UUID
	Name       string
	SkinID     int
	Pos        wire.Vec3
	RotY       float64
	State      wire.MovementState
	Grounded   bool
	Ready      bool
	Checkpoint int
}

func (p *Player) snapshot() wire.PlayerSnapshot {
	return wire.PlayerSnapshot{
		ID:         p.ID.String(),
		Name:       p.Name,
		SkinID:     p.SkinID,
		X:          p.Pos.X,
		Y:          p.Pos.Y,
		Z:          p.Pos.Z,
		RotY:       p.RotY,
		State:      p.State,
		Grounded:   p.Grounded,
		Ready:      p.Ready,
		Checkpoint: p.Checkpoint,
	}
}

// Conn is the session-facing side of one bound connection. Implementations
// must never block: sends enqueue into a bounded per-connection queue and
// the resync flag reports overflow back to the broadcast path.
type Conn interface {
	// SendControl enqueues a JSON control message.
	SendControl(data []byte)
	// SendState enqueues a binary state frame.
	SendState(data []byte)
	// NeedsResync reports whether the queue overflowed since the last full
	// snapshot; TakeResync additionally clears the flag.
	NeedsResync() bool
	TakeResync() bool
	// Close tears the transport down after the queued messages flush.
	Close()
}

// JoinRequest carries join parameters plus the ack message type the loop
// sends back through the connection before any broadcast can reach it.
// Leave Ack empty to skip the in-band acknowledgement.
type JoinRequest struct {
	Name string
	Skin int
	Ack  wire.MessageType
}

// JoinInfo is the reply to a successful create or join.
type JoinInfo struct {
	SessionID uuid.UUID
	RoomCode  string
	ClientID  uuid.UUID
	Spawn     wire.Vec3
	Snapshot  wire.SessionSnapshot
	Tick      uint64
}

// View is a read-only copy of session state, produced by the command loop so
// reads observe the same serialization as writes.
type View struct {
	SessionID uuid.UUID
	RoomCode  string
	GameState wire.GameState
	Countdown int
	Occupancy int
	Capacity  int
	StartedAt time.Time
	Snapshot  wire.SessionSnapshot
}

// Config carries the room tunables.
type Config struct {
	MaxOccupancy      int
	CountdownTicks    int
	CountdownInterval time.Duration
	PatchInterval     time.Duration
	SpawnPoints       []wire.Vec3
	SkinCount         int
	CommandBuffer     int
}

// DefaultConfig matches the shipped game: rooms of four, a three-second
// countdown, broadcasts at 30 Hz.
func DefaultConfig() Config {
	return Config{
		MaxOccupancy:      4,
		CountdownTicks:    3,
		CountdownInterval: time.Second,
		PatchInterval:     time.Second / 30,
		SpawnPoints: []wire.Vec3{
			{X: -3, Y: 0, Z: 0},
			{X: -1, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 3, Y: 0, Z: 0},
		},
		SkinCount:     8,
		CommandBuffer: 64,
	}
}

// normalizeSkin folds any client-supplied skin id into the configured range.
func (c Config) normalizeSkin(skin int) int {
	if c.SkinCount <= 0 {
		return 0
	}
	skin %= c.SkinCount
	if skin < 0 {
		skin += c.SkinCount
	}
	return skin
}
