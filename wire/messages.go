package wire

import (
	"encoding/json"
)

// MovementState is the locomotion mode carried on the wire. The client-side
// movement machine produces these values directly; there is no translation
// layer between the machine and the protocol.
type MovementState uint8

const (
	StateIdle MovementState = iota
	StateWalk
	StateRun
	StateJump
	StateFall
	StateSlide
)

// Valid reports whether s is one of the six defined movement states.
func (s MovementState) Valid() bool {
	return s <= StateSlide
}

func (s MovementState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWalk:
		return "Walk"
	case StateRun:
		return "Run"
	case StateJump:
		return "Jump"
	case StateFall:
		return "Fall"
	case StateSlide:
		return "Slide"
	default:
		return "Unknown"
	}
}

// GameState is the lobby lifecycle phase of a session. Playing is terminal
// for a session instance.
type GameState uint8

const (
	GameWaiting GameState = iota
	GameCountdown
	GamePlaying
)

func (g GameState) String() string {
	switch g {
	case GameWaiting:
		return "Waiting"
	case GameCountdown:
		return "Countdown"
	case GamePlaying:
		return "Playing"
	default:
		return "Unknown"
	}
}

// Vec3 is a position in world units.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Envelope is the framing for every JSON control message in both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType identifies a control message.
type MessageType string

// Client to server.
const (
	MsgCreateSession   MessageType = "CreateSession"
	MsgJoinSession     MessageType = "JoinSession"
	MsgLeaveSession    MessageType = "LeaveSession"
	MsgSetReady        MessageType = "SetReady"
	MsgUpdateTransform MessageType = "UpdateTransform"
)

// Server to client.
const (
	MsgCreateAck        MessageType = "CreateAck"
	MsgJoinAck          MessageType = "JoinAck"
	MsgPlayerAdded      MessageType = "PlayerAdded"
	MsgPlayerRemoved    MessageType = "PlayerRemoved"
	MsgGameStateChanged MessageType = "GameStateChanged"
	MsgCountdownTick    MessageType = "CountdownTick"
	MsgError            MessageType = "Error"
	MsgSessionClosed    MessageType = "SessionClosed"
)

// CreateSessionPayload requests a fresh session; the sender becomes its first
// player.
type CreateSessionPayload struct {
	DisplayName string `json:"display_name"`
	SkinID      int    `json:"skin_id"`
}

// JoinSessionPayload joins an existing session by room code or by session id.
// Code takes precedence when both are set.
type JoinSessionPayload struct {
	Code        string `json:"code,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	DisplayName string `json:"display_name"`
	SkinID      int    `json:"skin_id"`
}

// SetReadyPayload toggles the sender's lobby ready flag.
type SetReadyPayload struct {
	Ready bool `json:"ready"`
}

// UpdateTransformPayload carries the sender's client-authoritative transform
// and movement state. Recommended send rate is ~20 Hz.
type UpdateTransformPayload struct {
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
	Z        float64       `json:"z"`
	RotY     float64       `json:"rot_y"`
	State    MovementState `json:"state"`
	Grounded bool          `json:"grounded"`
}

// CreateAckPayload confirms session creation to the creator.
type CreateAckPayload struct {
	SessionID string `json:"session_id"`
	RoomCode  string `json:"room_code"`
	ClientID  string `json:"client_id"`
	Spawn     Vec3   `json:"spawn"`
}

// JoinAckPayload confirms a join. A full state frame follows immediately on
// the binary channel.
type JoinAckPayload struct {
	SessionID string `json:"session_id"`
	RoomCode  string `json:"room_code"`
	ClientID  string `json:"client_id"`
	Spawn     Vec3   `json:"spawn"`
}

// PlayerAddedPayload announces a new session member.
type PlayerAddedPayload struct {
	Player PlayerSnapshot `json:"player"`
}

// PlayerRemovedPayload announces a departure.
type PlayerRemovedPayload struct {
	ID string `json:"id"`
}

// GameStateChangedPayload announces a lobby phase transition.
type GameStateChangedPayload struct {
	State GameState `json:"state"`
}

// CountdownTickPayload carries the ticks remaining until the match starts.
type CountdownTickPayload struct {
	Value int `json:"value"`
}

// ErrorPayload reports a request failure to the offending client only.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SessionClosedPayload is the terminal signal sent to every bound client
// when a session disposes itself.
type SessionClosedPayload struct {
	Reason string `json:"reason"`
}

// ErrorCode is the wire form of the error taxonomy.
type ErrorCode string

const (
	CodeRoomNotFound     ErrorCode = "room_not_found"
	CodeRoomFull         ErrorCode = "room_full"
	CodeInvalidRoomCode  ErrorCode = "invalid_room_code"
	CodeMalformedMessage ErrorCode = "malformed_message"
)
