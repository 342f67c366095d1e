// Package interp smooths remote players between network updates. It is pure
// smoothing toward the last known target: under latency remote players lag
// behind their true position but never overshoot or rubber-band.
package interp

import (
	"math"

	"github.com/vaultrun/netcode/wire"
)

// Default blend rates, in 1/seconds. Higher converges faster.
const (
	DefaultPosRate = 12.0
	DefaultYawRate = 10.0
)

// Interpolator tracks one remote player's displayed transform. The first
// target snaps directly so freshly spawned players do not glide in from the
// origin.
type Interpolator struct {
	posRate float64
	yawRate float64

	pos       wire.Vec3
	yaw       float64
	targetPos wire.Vec3
	targetYaw float64
	seeded    bool
}

// New creates an interpolator with the given blend rates.
func New(posRate, yawRate float64) *Interpolator {
	return &Interpolator{posRate: posRate, yawRate: yawRate}
}

// SetTarget records the latest authoritative transform for this player.
func (it *Interpolator) SetTarget(pos wire.Vec3, yaw float64) {
	yaw = normalizeDeg(yaw)
	if !it.seeded {
		it.pos = pos
		it.yaw = yaw
		it.seeded = true
	}
	it.targetPos = pos
	it.targetYaw = yaw
}

// Step advances the displayed transform by dt seconds and returns it. The
// blend factor 1-exp(-rate*dt) is frame-rate independent: n small steps land
// exactly where one big step of the same total dt would.
func (it *Interpolator) Step(dt float64) (wire.Vec3, float64) {
	if !it.seeded || dt <= 0 {
		return it.pos, it.yaw
	}

	a := 1 - math.Exp(-it.posRate*dt)
	it.pos.X += (it.targetPos.X - it.pos.X) * a
	it.pos.Y += (it.targetPos.Y - it.pos.Y) * a
	it.pos.Z += (it.targetPos.Z - it.pos.Z) * a

	ay := 1 - math.Exp(-it.yawRate*dt)
	it.yaw = normalizeDeg(it.yaw + shortestArc(it.yaw, it.targetYaw)*ay)
	return it.pos, it.yaw
}

// Position returns the current displayed position.
func (it *Interpolator) Position() wire.Vec3 { return it.pos }

// Yaw returns the current displayed yaw in degrees, normalized to [0, 360).
func (it *Interpolator) Yaw() float64 { return it.yaw }

// shortestArc returns the signed shortest angular distance from a to b in
// degrees, in [-180, 180).
func shortestArc(a, b float64) float64 {
	return math.Mod(b-a+540, 360) - 180
}

func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
