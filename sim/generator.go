// Package sim provides a synthetic setpoint source for bench runs without a
// flight controller link.
package sim

import (
	"log"
	"math"
	"time"

	"vtol-mixer/demand"
)

// Profile names a canned demand trajectory.
type Profile string

const (
	// ProfileHover holds mid thrust with zero moments.
	ProfileHover Profile = "hover"
	// ProfileCircuit sweeps roll and pitch with slow sinusoids at mid thrust.
	ProfileCircuit Profile = "circuit"
	// ProfileTransition ramps tilt from hover to forward flight and back
	// while airspeed follows the tilt.
	ProfileTransition Profile = "transition"
)

// Generator produces smooth demand trajectories as a function of wall time.
// It implements the same provider interface as the MQTT collector, so the
// mixing loop cannot tell the difference.
type Generator struct {
	profile Profile
	start   time.Time

	thrust    float64
	amplitude float64
	period    time.Duration
}

func NewGenerator(profile Profile) *Generator {
	log.Printf("[Sim] Generating %q setpoints", profile)
	return &Generator{
		profile:   profile,
		start:     time.Now(),
		thrust:    0.5,
		amplitude: 0.3,
		period:    20 * time.Second,
	}
}

// Latest implements demand.SetpointProvider. The age is always zero: a
// generated setpoint can never go stale.
func (g *Generator) Latest() (demand.Setpoint, time.Duration) {
	now := time.Now()
	t := now.Sub(g.start).Seconds()
	phase := 2 * math.Pi * t / g.period.Seconds()

	sp := demand.Setpoint{
		Timestamp: now,
		Thrust:    g.thrust,
	}

	switch g.profile {
	case ProfileCircuit:
		sp.Roll = g.amplitude * math.Sin(phase)
		sp.Pitch = g.amplitude * math.Sin(phase/2)
		sp.Yaw = 0.1 * math.Sin(phase/4)

	case ProfileTransition:
		// Triangle wave 0 -> 1 -> 0 over one period.
		frac := math.Mod(t/g.period.Seconds(), 1.0)
		tilt := 2 * frac
		if tilt > 1 {
			tilt = 2 - tilt
		}
		sp.Tilt = tilt
		// Airspeed builds as the rotors tilt forward.
		sp.Airspeed = 0.6 * tilt

	default:
		// Hover: constant demands.
	}

	return sp, 0
}
