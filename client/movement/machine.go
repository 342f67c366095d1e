// Package movement is the deterministic client-side locomotion state
// machine. It is evaluated once per simulation step by the host loop and its
// current state value is exactly the movement state carried on the wire.
package movement

import (
	"math"

	"github.com/vaultrun/netcode/wire"
)

// Params are the locomotion tunables. Gravity is negative.
type Params struct {
	Gravity        float64
	GroundedFallVY float64
	JumpApexHeight float64
	WalkSpeed      float64
	RunSpeed       float64
	GroundDecel    float64
	SlideDuration  float64
	InputDeadzone  float64
}

// DefaultParams returns the tuning the game ships with.
func DefaultParams() Params {
	return Params{
		Gravity:        -24.0,
		GroundedFallVY: -2.0,
		JumpApexHeight: 2.4,
		WalkSpeed:      4.0,
		RunSpeed:       8.0,
		GroundDecel:    12.0,
		SlideDuration:  0.75,
		InputDeadzone:  0.1,
	}
}

// LaunchVelocity derives the jump take-off velocity from the target apex
// height: v0 = sqrt(2*|g|*h).
func LaunchVelocity(p Params) float64 {
	return math.Sqrt(2 * math.Abs(p.Gravity) * p.JumpApexHeight)
}

// Input is one step's logical input. Jump and Slide are edges: true only on
// the step the button was pressed. Grounded comes from the host's ground
// probe.
type Input struct {
	MoveX    float64
	MoveZ    float64
	Run      bool
	Jump     bool
	Slide    bool
	Grounded bool
}

// Magnitude is the movement intent strength.
func (in Input) Magnitude() float64 {
	return math.Hypot(in.MoveX, in.MoveZ)
}

// Machine holds the current movement state plus the small amount of physics
// it integrates: vertical velocity, horizontal speed and slide progress.
type Machine struct {
	params Params

	state        wire.MovementState
	velY         float64
	speed        float64
	slideElapsed float64
	slideEntry   float64
}

// NewMachine starts grounded and idle.
func NewMachine(p Params) *Machine {
	return &Machine{
		params: p,
		state:  wire.StateIdle,
		velY:   p.GroundedFallVY,
	}
}

// State returns the current movement state.
func (m *Machine) State() wire.MovementState { return m.state }

// VerticalVelocity returns the integrated vertical velocity for the host to
// apply to the player body.
func (m *Machine) VerticalVelocity() float64 { return m.velY }

// HorizontalSpeed returns the current ground speed for the host to apply
// along the input direction.
func (m *Machine) HorizontalSpeed() float64 { return m.speed }

// transitionTable selects the guard function for the current state. Guard
// order within each state is fixed: jump beats leaving the ground, leaving
// the ground beats everything that assumes contact.
var transitionTable = [...]func(*Machine, Input) wire.MovementState{
	wire.StateIdle:  (*Machine).fromIdle,
	wire.StateWalk:  (*Machine).fromWalk,
	wire.StateRun:   (*Machine).fromRun,
	wire.StateJump:  (*Machine).fromJump,
	wire.StateFall:  (*Machine).fromFall,
	wire.StateSlide: (*Machine).fromSlide,
}

// Step advances the machine by dt seconds and returns the resulting state.
// At most one transition fires per step.
func (m *Machine) Step(in Input, dt float64) wire.MovementState {
	if m.state == wire.StateSlide {
		m.slideElapsed += dt
	}

	m.velY += m.params.Gravity * dt
	if in.Grounded && m.velY < m.params.GroundedFallVY {
		m.velY = m.params.GroundedFallVY
	}

	next := transitionTable[m.state](m, in)
	if next != m.state {
		m.enter(next)
	}
	m.updateSpeed(in, dt)
	return m.state
}

func (m *Machine) fromIdle(in Input) wire.MovementState {
	switch {
	case in.Jump && in.Grounded:
		return wire.StateJump
	case !in.Grounded:
		return wire.StateFall
	case in.Magnitude() > m.params.InputDeadzone:
		return wire.StateWalk
	}
	return wire.StateIdle
}

func (m *Machine) fromWalk(in Input) wire.MovementState {
	switch {
	case in.Jump && in.Grounded:
		return wire.StateJump
	case !in.Grounded:
		return wire.StateFall
	case in.Slide:
		return wire.StateSlide
	case in.Magnitude() <= m.params.InputDeadzone:
		return wire.StateIdle
	case in.Run:
		return wire.StateRun
	}
	return wire.StateWalk
}

func (m *Machine) fromRun(in Input) wire.MovementState {
	switch {
	case in.Jump && in.Grounded:
		return wire.StateJump
	case !in.Grounded:
		return wire.StateFall
	case !in.Run:
		return wire.StateWalk
	}
	return wire.StateRun
}

func (m *Machine) fromJump(in Input) wire.MovementState {
	if m.velY <= 0 {
		return wire.StateFall
	}
	return wire.StateJump
}

func (m *Machine) fromFall(in Input) wire.MovementState {
	if !in.Grounded {
		return wire.StateFall
	}
	if in.Magnitude() <= m.params.InputDeadzone {
		return wire.StateIdle
	}
	if in.Run {
		return wire.StateRun
	}
	return wire.StateWalk
}

func (m *Machine) fromSlide(in Input) wire.MovementState {
	switch {
	case in.Jump:
		return wire.StateJump
	case m.slideElapsed >= m.params.SlideDuration && in.Magnitude() <= m.params.InputDeadzone:
		return wire.StateIdle
	case m.slideElapsed >= m.params.SlideDuration:
		return wire.StateWalk
	}
	return wire.StateSlide
}

func (m *Machine) enter(next wire.MovementState) {
	switch next {
	case wire.StateJump:
		m.velY = LaunchVelocity(m.params)
	case wire.StateSlide:
		m.slideElapsed = 0
		m.slideEntry = m.speed
		if m.slideEntry < m.params.WalkSpeed {
			m.slideEntry = m.params.WalkSpeed
		}
	}
	m.state = next
}

// updateSpeed maintains the horizontal ground speed. Walk keeps momentum
// from a faster prior state and bleeds it off at GroundDecel, which is what
// a slide entered right after running captures as its entry speed. Airborne
// states preserve momentum.
func (m *Machine) updateSpeed(in Input, dt float64) {
	p := m.params
	switch m.state {
	case wire.StateIdle:
		m.speed = 0
	case wire.StateWalk:
		if m.speed > p.WalkSpeed {
			m.speed -= p.GroundDecel * dt
			if m.speed < p.WalkSpeed {
				m.speed = p.WalkSpeed
			}
		} else {
			m.speed = p.WalkSpeed
		}
	case wire.StateRun:
		m.speed = p.RunSpeed
	case wire.StateSlide:
		t := m.slideElapsed / p.SlideDuration
		if t > 1 {
			t = 1
		}
		m.speed = m.slideEntry + (p.WalkSpeed-m.slideEntry)*t
	case wire.StateJump, wire.StateFall:
		// momentum preserved
	}
}
