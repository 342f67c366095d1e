package delta

import (
	"fmt"

	"github.com/vaultrun/netcode/wire"
)

// Apply replays a delta onto a copy of base and returns the result. Payloads
// may be the typed structs produced by Diff or the generic maps a codec
// round-trip produces; both are accepted.
func Apply(base wire.SessionSnapshot, d wire.Delta) (wire.SessionSnapshot, error) {
	next := Clone(base)
	if next.Players == nil {
		next.Players = make(map[string]wire.PlayerSnapshot)
	}

	for _, id := range d.Removed {
		delete(next.Players, id)
	}
	for _, p := range d.Added {
		next.Players[p.ID] = p
	}

	for _, patch := range d.Patches {
		if patch.Kind == wire.PatchPhase {
			payload, ok := asPhase(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			next.GameState = payload.GameState
			next.Countdown = payload.Countdown
			continue
		}

		if patch.PlayerID == "" {
			return wire.SessionSnapshot{}, fmt.Errorf("apply delta: missing player id for kind %q", patch.Kind)
		}
		p, ok := next.Players[patch.PlayerID]
		if !ok {
			return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unknown player %q for kind %q", patch.PlayerID, patch.Kind)
		}

		switch patch.Kind {
		case wire.PatchPos:
			payload, ok := asPos(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			p.X, p.Y, p.Z = payload.X, payload.Y, payload.Z
		case wire.PatchYaw:
			payload, ok := asYaw(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			p.RotY = payload.RotY
		case wire.PatchMovement:
			payload, ok := asMovement(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			p.State, p.Grounded = payload.State, payload.Grounded
		case wire.PatchReady:
			payload, ok := asReady(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			p.Ready = payload.Ready
		case wire.PatchCheckpoint:
			payload, ok := asCheckpoint(patch.Payload)
			if !ok {
				return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			p.Checkpoint = payload.Checkpoint
		default:
			return wire.SessionSnapshot{}, fmt.Errorf("apply delta: unsupported patch kind %q", patch.Kind)
		}
		next.Players[patch.PlayerID] = p
	}
	return next, nil
}

func asPos(value any) (wire.PosPayload, bool) {
	switch v := value.(type) {
	case wire.PosPayload:
		return v, true
	case *wire.PosPayload:
		if v == nil {
			return wire.PosPayload{}, false
		}
		return *v, true
	case map[string]any:
		x, ok1 := asFloat(v["x"])
		y, ok2 := asFloat(v["y"])
		z, ok3 := asFloat(v["z"])
		if !ok1 || !ok2 || !ok3 {
			return wire.PosPayload{}, false
		}
		return wire.PosPayload{X: x, Y: y, Z: z}, true
	default:
		return wire.PosPayload{}, false
	}
}

func asYaw(value any) (wire.YawPayload, bool) {
	switch v := value.(type) {
	case wire.YawPayload:
		return v, true
	case *wire.YawPayload:
		if v == nil {
			return wire.YawPayload{}, false
		}
		return *v, true
	case map[string]any:
		rot, ok := asFloat(v["rot_y"])
		if !ok {
			return wire.YawPayload{}, false
		}
		return wire.YawPayload{RotY: rot}, true
	default:
		return wire.YawPayload{}, false
	}
}

func asMovement(value any) (wire.MovementPayload, bool) {
	switch v := value.(type) {
	case wire.MovementPayload:
		return v, true
	case *wire.MovementPayload:
		if v == nil {
			return wire.MovementPayload{}, false
		}
		return *v, true
	case map[string]any:
		state, ok1 := asInt(v["state"])
		grounded, ok2 := asBool(v["grounded"])
		if !ok1 || !ok2 || !wire.MovementState(state).Valid() {
			return wire.MovementPayload{}, false
		}
		return wire.MovementPayload{State: wire.MovementState(state), Grounded: grounded}, true
	default:
		return wire.MovementPayload{}, false
	}
}

func asReady(value any) (wire.ReadyPayload, bool) {
	switch v := value.(type) {
	case wire.ReadyPayload:
		return v, true
	case *wire.ReadyPayload:
		if v == nil {
			return wire.ReadyPayload{}, false
		}
		return *v, true
	case map[string]any:
		ready, ok := asBool(v["ready"])
		if !ok {
			return wire.ReadyPayload{}, false
		}
		return wire.ReadyPayload{Ready: ready}, true
	default:
		return wire.ReadyPayload{}, false
	}
}

func asCheckpoint(value any) (wire.CheckpointPayload, bool) {
	switch v := value.(type) {
	case wire.CheckpointPayload:
		return v, true
	case *wire.CheckpointPayload:
		if v == nil {
			return wire.CheckpointPayload{}, false
		}
		return *v, true
	case map[string]any:
		cp, ok := asInt(v["checkpoint"])
		if !ok {
			return wire.CheckpointPayload{}, false
		}
		return wire.CheckpointPayload{Checkpoint: cp}, true
	default:
		return wire.CheckpointPayload{}, false
	}
}

func asPhase(value any) (wire.PhasePayload, bool) {
	switch v := value.(type) {
	case wire.PhasePayload:
		return v, true
	case *wire.PhasePayload:
		if v == nil {
			return wire.PhasePayload{}, false
		}
		return *v, true
	case map[string]any:
		state, ok1 := asInt(v["game_state"])
		countdown, ok2 := asInt(v["countdown"])
		if !ok1 || !ok2 {
			return wire.PhasePayload{}, false
		}
		return wire.PhasePayload{GameState: wire.GameState(state), Countdown: countdown}, true
	default:
		return wire.PhasePayload{}, false
	}
}

// asFloat coerces the numeric types json and msgpack decoding can produce.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	f, ok := asFloat(value)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asBool(value any) (bool, bool) {
	b, ok := value.(bool)
	return b, ok
}
