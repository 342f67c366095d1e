package delta

import (
	"reflect"
	"testing"

	"github.com/vaultrun/netcode/wire"
)

func snapshotFixture() wire.SessionSnapshot {
	return wire.SessionSnapshot{
		GameState: wire.GameWaiting,
		Players: map[string]wire.PlayerSnapshot{
			"a": {ID: "a", Name: "ana", SkinID: 1, X: 1, Y: 0, Z: 2, RotY: 90, State: wire.StateIdle, Grounded: true},
			"b": {ID: "b", Name: "bo", SkinID: 2, X: -3, Y: 0, Z: 4, RotY: 180, State: wire.StateRun, Grounded: true, Ready: true},
		},
	}
}

func TestDiffAddedPlayersCarryFullRecords(t *testing.T) {
	prev := wire.SessionSnapshot{Players: map[string]wire.PlayerSnapshot{}}
	next := snapshotFixture()

	d := Diff(prev, next)
	if len(d.Added) != 2 {
		t.Fatalf("expected 2 added players, got %d", len(d.Added))
	}
	if len(d.Removed) != 0 || len(d.Patches) != 0 {
		t.Fatalf("expected adds only, got removed=%v patches=%v", d.Removed, d.Patches)
	}
	if d.Added[0].ID != "a" || d.Added[1].ID != "b" {
		t.Fatalf("expected deterministic id order [a b], got [%s %s]", d.Added[0].ID, d.Added[1].ID)
	}
}

func TestDiffRemovedPlayersCarryIDsOnly(t *testing.T) {
	prev := snapshotFixture()
	next := Clone(prev)
	delete(next.Players, "b")

	d := Diff(prev, next)
	if len(d.Removed) != 1 || d.Removed[0] != "b" {
		t.Fatalf("expected removed [b], got %v", d.Removed)
	}
	if len(d.Added) != 0 || len(d.Patches) != 0 {
		t.Fatalf("expected removal only, got added=%v patches=%v", d.Added, d.Patches)
	}
}

func TestDiffEmitsOnlyChangedFields(t *testing.T) {
	prev := snapshotFixture()
	next := Clone(prev)
	p := next.Players["a"]
	p.X = 5.5
	p.Z = -1.25
	next.Players["a"] = p

	d := Diff(prev, next)
	if len(d.Patches) != 1 {
		t.Fatalf("expected exactly one patch, got %d: %v", len(d.Patches), d.Patches)
	}
	patch := d.Patches[0]
	if patch.Kind != wire.PatchPos || patch.PlayerID != "a" {
		t.Fatalf("expected pos patch for a, got kind=%q player=%q", patch.Kind, patch.PlayerID)
	}
	pos, ok := patch.Payload.(wire.PosPayload)
	if !ok {
		t.Fatalf("expected PosPayload, got %T", patch.Payload)
	}
	if pos.X != 5.5 || pos.Y != 0 || pos.Z != -1.25 {
		t.Fatalf("unexpected pos payload %+v", pos)
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	prev := snapshotFixture()
	d := Diff(prev, Clone(prev))
	if !d.Empty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
}

func TestRoundTripReproducesTarget(t *testing.T) {
	base := snapshotFixture()

	movedA := Clone(base)
	pa := movedA.Players["a"]
	pa.X, pa.RotY, pa.State, pa.Grounded = 10, 45, wire.StateJump, false
	movedA.Players["a"] = pa

	joined := Clone(movedA)
	joined.Players["c"] = wire.PlayerSnapshot{ID: "c", Name: "cy", SkinID: 3, X: 7, State: wire.StateFall}

	countdown := Clone(joined)
	countdown.GameState = wire.GameCountdown
	countdown.Countdown = 3
	pb := countdown.Players["b"]
	pb.Ready = true
	countdown.Players["b"] = pb

	churned := Clone(countdown)
	delete(churned.Players, "a")
	pc := churned.Players["c"]
	pc.Checkpoint = 4
	pc.RotY = 359.5
	churned.Players["c"] = pc
	churned.GameState = wire.GamePlaying
	churned.Countdown = 0

	steps := []struct {
		name string
		from wire.SessionSnapshot
		to   wire.SessionSnapshot
	}{
		{"transform change", base, movedA},
		{"player joined", movedA, joined},
		{"countdown started", joined, countdown},
		{"leave plus progress", countdown, churned},
		{"no change", churned, churned},
	}
	for _, step := range steps {
		got, err := Apply(step.from, Diff(step.from, step.to))
		if err != nil {
			t.Fatalf("%s: apply failed: %v", step.name, err)
		}
		if !reflect.DeepEqual(got, step.to) {
			t.Fatalf("%s: round trip mismatch\n got: %+v\nwant: %+v", step.name, got, step.to)
		}
	}
}

func TestRoundTripSurvivesBinaryCodec(t *testing.T) {
	prev := snapshotFixture()
	next := Clone(prev)
	p := next.Players["a"]
	p.X, p.Y, p.Z = 3.5, 1.25, -9
	p.State = wire.StateSlide
	next.Players["a"] = p
	next.Players["d"] = wire.PlayerSnapshot{ID: "d", Name: "dee", X: 2}
	delete(next.Players, "b")
	next.GameState = wire.GameCountdown
	next.Countdown = 2

	d := Diff(prev, next)
	encoded, err := wire.EncodeStateFrame(wire.StateFrame{Kind: wire.FrameDelta, Tick: 7, Delta: &d})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	frame, err := wire.DecodeStateFrame(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if frame.Kind != wire.FrameDelta || frame.Tick != 7 || frame.Delta == nil {
		t.Fatalf("unexpected frame %+v", frame)
	}

	got, err := Apply(prev, *frame.Delta)
	if err != nil {
		t.Fatalf("apply decoded delta failed: %v", err)
	}
	if !reflect.DeepEqual(got, next) {
		t.Fatalf("codec round trip mismatch\n got: %+v\nwant: %+v", got, next)
	}
}

func TestApplyRejectsUnknownPlayer(t *testing.T) {
	base := snapshotFixture()
	_, err := Apply(base, wire.Delta{Patches: []wire.Patch{
		{Kind: wire.PatchYaw, PlayerID: "ghost", Payload: wire.YawPayload{RotY: 1}},
	}})
	if err == nil {
		t.Fatalf("expected error for patch on unknown player")
	}
}

func TestApplyRejectsUnsupportedKind(t *testing.T) {
	base := snapshotFixture()
	_, err := Apply(base, wire.Delta{Patches: []wire.Patch{
		{Kind: "teleport", PlayerID: "a", Payload: wire.PosPayload{}},
	}})
	if err == nil {
		t.Fatalf("expected error for unsupported patch kind")
	}
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	base := snapshotFixture()
	want := Clone(base)

	next := Clone(base)
	p := next.Players["a"]
	p.X = 99
	next.Players["a"] = p
	if _, err := Apply(base, Diff(base, next)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !reflect.DeepEqual(base, want) {
		t.Fatalf("base snapshot mutated by Apply: %+v", base)
	}
}
