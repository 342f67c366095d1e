// Package delta computes and applies the structural diffs broadcast at the
// patch rate: added players as full records, removed players as ids, and
// changed fields as patches. Applying the diff between two snapshots to the
// first reproduces the second exactly.
package delta

import (
	"sort"

	"github.com/vaultrun/netcode/wire"
)

// Diff computes the minimal structural delta from prev to next. Output order
// is deterministic: removed and added sorted by id, patches grouped per
// player in id order, the session-level phase patch first.
func Diff(prev, next wire.SessionSnapshot) wire.Delta {
	var d wire.Delta

	if prev.GameState != next.GameState || prev.Countdown != next.Countdown {
		d.Patches = append(d.Patches, wire.Patch{
			Kind:    wire.PatchPhase,
			Payload: wire.PhasePayload{GameState: next.GameState, Countdown: next.Countdown},
		})
	}

	for id := range prev.Players {
		if _, ok := next.Players[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Removed)

	ids := make([]string, 0, len(next.Players))
	for id := range next.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		np := next.Players[id]
		pp, ok := prev.Players[id]
		if !ok {
			d.Added = append(d.Added, np)
			continue
		}
		if pp.X != np.X || pp.Y != np.Y || pp.Z != np.Z {
			d.Patches = append(d.Patches, wire.Patch{
				Kind:     wire.PatchPos,
				PlayerID: id,
				Payload:  wire.PosPayload{X: np.X, Y: np.Y, Z: np.Z},
			})
		}
		if pp.RotY != np.RotY {
			d.Patches = append(d.Patches, wire.Patch{
				Kind:     wire.PatchYaw,
				PlayerID: id,
				Payload:  wire.YawPayload{RotY: np.RotY},
			})
		}
		if pp.State != np.State || pp.Grounded != np.Grounded {
			d.Patches = append(d.Patches, wire.Patch{
				Kind:     wire.PatchMovement,
				PlayerID: id,
				Payload:  wire.MovementPayload{State: np.State, Grounded: np.Grounded},
			})
		}
		if pp.Ready != np.Ready {
			d.Patches = append(d.Patches, wire.Patch{
				Kind:     wire.PatchReady,
				PlayerID: id,
				Payload:  wire.ReadyPayload{Ready: np.Ready},
			})
		}
		if pp.Checkpoint != np.Checkpoint {
			d.Patches = append(d.Patches, wire.Patch{
				Kind:     wire.PatchCheckpoint,
				PlayerID: id,
				Payload:  wire.CheckpointPayload{Checkpoint: np.Checkpoint},
			})
		}
	}
	return d
}

// Clone deep-copies a snapshot so callers can hold it across later mutations.
func Clone(s wire.SessionSnapshot) wire.SessionSnapshot {
	out := s
	out.Players = make(map[string]wire.PlayerSnapshot, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p
	}
	return out
}
