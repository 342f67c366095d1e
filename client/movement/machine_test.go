package movement

import (
	"math"
	"testing"

	"github.com/vaultrun/netcode/wire"
)

const testDT = 1.0 / 60.0

func groundedMachine(state wire.MovementState) *Machine {
	m := NewMachine(DefaultParams())
	m.state = state
	m.velY = m.params.GroundedFallVY
	if state == wire.StateWalk {
		m.speed = m.params.WalkSpeed
	}
	if state == wire.StateRun {
		m.speed = m.params.RunSpeed
	}
	return m
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from wire.MovementState
		in   Input
		want wire.MovementState
	}{
		{"idle jump grounded", wire.StateIdle, Input{Jump: true, Grounded: true}, wire.StateJump},
		{"idle leaves ground", wire.StateIdle, Input{}, wire.StateFall},
		{"idle input above deadzone", wire.StateIdle, Input{MoveX: 0.2, Grounded: true}, wire.StateWalk},
		{"idle input within deadzone", wire.StateIdle, Input{MoveX: 0.05, Grounded: true}, wire.StateIdle},
		{"idle slide ignored", wire.StateIdle, Input{Slide: true, Grounded: true}, wire.StateIdle},
		{"walk input released", wire.StateWalk, Input{Grounded: true}, wire.StateIdle},
		{"walk run held", wire.StateWalk, Input{MoveX: 1, Run: true, Grounded: true}, wire.StateRun},
		{"walk slide pressed", wire.StateWalk, Input{MoveX: 1, Slide: true, Grounded: true}, wire.StateSlide},
		{"walk jump grounded", wire.StateWalk, Input{MoveX: 1, Jump: true, Grounded: true}, wire.StateJump},
		{"walk leaves ground", wire.StateWalk, Input{MoveX: 1}, wire.StateFall},
		{"run released", wire.StateRun, Input{MoveX: 1, Grounded: true}, wire.StateWalk},
		{"run held", wire.StateRun, Input{MoveX: 1, Run: true, Grounded: true}, wire.StateRun},
		{"run slide ignored", wire.StateRun, Input{MoveX: 1, Run: true, Slide: true, Grounded: true}, wire.StateRun},
		{"run jump grounded", wire.StateRun, Input{MoveX: 1, Run: true, Jump: true, Grounded: true}, wire.StateJump},
		{"run leaves ground", wire.StateRun, Input{MoveX: 1, Run: true}, wire.StateFall},
		{"fall lands idle", wire.StateFall, Input{Grounded: true}, wire.StateIdle},
		{"fall lands walking", wire.StateFall, Input{MoveX: 1, Grounded: true}, wire.StateWalk},
		{"fall lands running", wire.StateFall, Input{MoveX: 1, Run: true, Grounded: true}, wire.StateRun},
		{"fall stays airborne", wire.StateFall, Input{MoveX: 1}, wire.StateFall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := groundedMachine(tt.from)
			if got := m.Step(tt.in, testDT); got != tt.want {
				t.Fatalf("%s: Step() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestIdleWalkRunScenario(t *testing.T) {
	m := NewMachine(DefaultParams())

	if got := m.Step(Input{MoveX: 0.2, Grounded: true}, testDT); got != wire.StateWalk {
		t.Fatalf("expected Idle -> Walk with input 0.2, got %v", got)
	}
	if got := m.Step(Input{MoveX: 0.2, Run: true, Grounded: true}, testDT); got != wire.StateRun {
		t.Fatalf("expected Walk -> Run with run held, got %v", got)
	}
}

func TestJumpLaunchVelocity(t *testing.T) {
	p := DefaultParams()
	m := NewMachine(p)

	m.Step(Input{Jump: true, Grounded: true}, testDT)
	want := math.Sqrt(2 * math.Abs(p.Gravity) * p.JumpApexHeight)
	if got := m.VerticalVelocity(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("launch velocity = %f, want %f", got, want)
	}
}

func TestJumpFallsAtApex(t *testing.T) {
	m := NewMachine(DefaultParams())
	m.Step(Input{Jump: true, Grounded: true}, testDT)

	steps := 0
	for m.State() == wire.StateJump {
		if m.VerticalVelocity() <= 0 {
			t.Fatalf("still Jump with non-positive velocity %f", m.VerticalVelocity())
		}
		m.Step(Input{}, testDT)
		if steps++; steps > 1000 {
			t.Fatalf("jump never reached apex")
		}
	}
	if m.State() != wire.StateFall {
		t.Fatalf("expected Fall after apex, got %v", m.State())
	}
}

func TestGroundedClampsVerticalVelocity(t *testing.T) {
	p := DefaultParams()
	m := NewMachine(p)

	for i := 0; i < 120; i++ {
		m.Step(Input{Grounded: true}, testDT)
	}
	if got := m.VerticalVelocity(); got != p.GroundedFallVY {
		t.Fatalf("grounded velocity = %f, want clamp %f", got, p.GroundedFallVY)
	}
}

func TestSlideSpeedDecaysLinearly(t *testing.T) {
	p := DefaultParams()
	m := groundedMachine(wire.StateWalk)
	m.speed = p.RunSpeed // momentum carried out of a run

	if got := m.Step(Input{MoveX: 1, Slide: true, Grounded: true}, testDT); got != wire.StateSlide {
		t.Fatalf("expected Slide entry, got %v", got)
	}
	if got := m.HorizontalSpeed(); math.Abs(got-p.RunSpeed) > 1e-9 {
		t.Fatalf("slide entry speed = %f, want %f", got, p.RunSpeed)
	}

	half := p.SlideDuration / 2
	for elapsed := 0.0; elapsed < half; elapsed += testDT {
		m.Step(Input{MoveX: 1, Grounded: true}, testDT)
	}
	mid := p.RunSpeed + (p.WalkSpeed-p.RunSpeed)*(m.slideElapsed/p.SlideDuration)
	if got := m.HorizontalSpeed(); math.Abs(got-mid) > 1e-9 {
		t.Fatalf("mid-slide speed = %f, want linear %f", got, mid)
	}

	for m.State() == wire.StateSlide {
		m.Step(Input{MoveX: 1, Grounded: true}, testDT)
	}
	if m.State() != wire.StateWalk {
		t.Fatalf("expected Walk after slide with input held, got %v", m.State())
	}
}

func TestSlideExitDependsOnInput(t *testing.T) {
	p := DefaultParams()

	m := groundedMachine(wire.StateWalk)
	m.Step(Input{MoveX: 1, Slide: true, Grounded: true}, testDT)
	m.slideElapsed = p.SlideDuration
	if got := m.Step(Input{Grounded: true}, testDT); got != wire.StateIdle {
		t.Fatalf("expected Idle after slide without input, got %v", got)
	}

	m = groundedMachine(wire.StateWalk)
	m.Step(Input{MoveX: 1, Slide: true, Grounded: true}, testDT)
	m.slideElapsed = p.SlideDuration
	if got := m.Step(Input{MoveX: 1, Grounded: true}, testDT); got != wire.StateWalk {
		t.Fatalf("expected Walk after slide with input, got %v", got)
	}
}

func TestSlideJumpCancel(t *testing.T) {
	m := groundedMachine(wire.StateWalk)
	m.Step(Input{MoveX: 1, Slide: true, Grounded: true}, testDT)

	if got := m.Step(Input{Jump: true, Grounded: true}, testDT); got != wire.StateJump {
		t.Fatalf("expected Jump out of slide, got %v", got)
	}
	if m.VerticalVelocity() <= 0 {
		t.Fatalf("expected positive launch velocity, got %f", m.VerticalVelocity())
	}
}

func TestStepIsDeterministic(t *testing.T) {
	script := []Input{
		{MoveX: 0.3, Grounded: true},
		{MoveX: 1, Run: true, Grounded: true},
		{MoveX: 1, Run: true, Jump: true, Grounded: true},
		{MoveX: 1},
		{MoveX: 1},
		{MoveX: 1, Grounded: true},
		{MoveX: 1, Slide: true, Grounded: true},
		{MoveX: 0.5, Grounded: true},
		{Grounded: true},
	}

	a := NewMachine(DefaultParams())
	b := NewMachine(DefaultParams())
	for i, in := range script {
		sa := a.Step(in, testDT)
		sb := b.Step(in, testDT)
		if sa != sb || a.VerticalVelocity() != b.VerticalVelocity() || a.HorizontalSpeed() != b.HorizontalSpeed() {
			t.Fatalf("step %d diverged: %v/%f/%f vs %v/%f/%f",
				i, sa, a.VerticalVelocity(), a.HorizontalSpeed(), sb, b.VerticalVelocity(), b.HorizontalSpeed())
		}
	}
}
