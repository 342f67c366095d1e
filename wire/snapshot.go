package wire

// PlayerSnapshot is the full wire form of one player's replicated state.
type PlayerSnapshot struct {
	ID         string        `json:"id" msgpack:"id"`
	Name       string        `json:"name" msgpack:"name"`
	SkinID     int           `json:"skin_id" msgpack:"skin_id"`
	X          float64       `json:"x" msgpack:"x"`
	Y          float64       `json:"y" msgpack:"y"`
	Z          float64       `json:"z" msgpack:"z"`
	RotY       float64       `json:"rot_y" msgpack:"rot_y"`
	State      MovementState `json:"state" msgpack:"state"`
	Grounded   bool          `json:"grounded" msgpack:"grounded"`
	Ready      bool          `json:"ready" msgpack:"ready"`
	Checkpoint int           `json:"checkpoint" msgpack:"checkpoint"`
}

// SessionSnapshot is the full replicated state of one session at a patch
// tick: the lobby phase plus every player keyed by client id.
type SessionSnapshot struct {
	GameState GameState                 `json:"game_state" msgpack:"game_state"`
	Countdown int                       `json:"countdown" msgpack:"countdown"`
	Players   map[string]PlayerSnapshot `json:"players" msgpack:"players"`
}

// PatchKind tags one structural change inside a delta.
type PatchKind string

const (
	PatchPos        PatchKind = "pos"
	PatchYaw        PatchKind = "yaw"
	PatchMovement   PatchKind = "movement"
	PatchReady      PatchKind = "ready"
	PatchCheckpoint PatchKind = "checkpoint"
	PatchPhase      PatchKind = "phase"
)

// Patch is one changed field group on one player, or a session-level phase
// change when Kind is PatchPhase (PlayerID empty).
type Patch struct {
	Kind     PatchKind `json:"kind" msgpack:"kind"`
	PlayerID string    `json:"player_id,omitempty" msgpack:"player_id,omitempty"`
	Payload  any       `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// PosPayload carries a position change.
type PosPayload struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// YawPayload carries a rotation change.
type YawPayload struct {
	RotY float64 `json:"rot_y" msgpack:"rot_y"`
}

// MovementPayload carries a movement state or grounded-flag change.
type MovementPayload struct {
	State    MovementState `json:"state" msgpack:"state"`
	Grounded bool          `json:"grounded" msgpack:"grounded"`
}

// ReadyPayload carries a lobby ready-flag change.
type ReadyPayload struct {
	Ready bool `json:"ready" msgpack:"ready"`
}

// CheckpointPayload carries a progress change.
type CheckpointPayload struct {
	Checkpoint int `json:"checkpoint" msgpack:"checkpoint"`
}

// PhasePayload carries a session-level lobby phase change.
type PhasePayload struct {
	GameState GameState `json:"game_state" msgpack:"game_state"`
	Countdown int       `json:"countdown" msgpack:"countdown"`
}

// Delta is the minimal structural difference between two session snapshots:
// added players as full records, removed players as ids, and changed fields
// as patches.
type Delta struct {
	Added   []PlayerSnapshot `json:"added,omitempty" msgpack:"added,omitempty"`
	Removed []string         `json:"removed,omitempty" msgpack:"removed,omitempty"`
	Patches []Patch          `json:"patches,omitempty" msgpack:"patches,omitempty"`
}

// Empty reports whether the delta carries no change at all.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Patches) == 0
}

// FrameKind distinguishes the two binary state frame forms.
type FrameKind uint8

const (
	FrameSnapshot FrameKind = 1
	FrameDelta    FrameKind = 2
)

// StateFrame is the msgpack-encoded binary message broadcast at the patch
// rate. Exactly one of Snapshot or Delta is set, per Kind.
type StateFrame struct {
	Kind     FrameKind        `msgpack:"kind"`
	Tick     uint64           `msgpack:"tick"`
	Snapshot *SessionSnapshot `msgpack:"snapshot,omitempty"`
	Delta    *Delta           `msgpack:"delta,omitempty"`
}
