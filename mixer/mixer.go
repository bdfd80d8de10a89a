// Package mixer implements the actuator mixing layer of the flight stack:
// it turns normalized roll/pitch/yaw/thrust demands (plus tilt and airspeed
// for the tilt-rotor airframe) into per-actuator commands while tracking
// which control axes are saturating.
//
// Everything in this package runs once per control tick. Scratch buffers are
// allocated at construction and reused, so Mix never allocates.
package mixer

// Control groups and channel indexes queried from a ControlSource.
const (
	GroupAttitude = 0

	IndexRoll     = 0
	IndexPitch    = 1
	IndexYaw      = 2
	IndexThrust   = 3
	IndexTilt     = 4
	IndexAirspeed = 5
)

// MaxRotorCount is the largest rotor count of any supported geometry.
const MaxRotorCount = 8

// ControlSource supplies normalized demand signals. The mixer pulls values
// per (group, index) and clamps them to their expected ranges.
type ControlSource interface {
	Control(group, index int) float64
}

// Mixer is the common capability of the mixing strategies. Mix writes up to
// N actuator commands into outputs and returns the count written, or 0 when
// the buffer is too small. The slew limit is one-shot: it applies to the
// next Mix call only and resets afterwards.
type Mixer interface {
	Mix(outputs []float64) int
	Saturation() SaturationStatus
	SetSlewLimit(deltaOutMax float64)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
