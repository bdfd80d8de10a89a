package mixer

import "math"

// Airmode selects which control axes may consume actuator headroom while
// motors are saturating. It is a configuration decision, never inferred from
// signal values at runtime.
type Airmode int

const (
	// AirmodeDisabled never increases thrust to unsaturate a motor.
	AirmodeDisabled Airmode = iota
	// AirmodeRollPitch lets roll/pitch demands boost thrust; yaw may not.
	AirmodeRollPitch
	// AirmodeRollPitchYaw lets every axis boost thrust, with roll/pitch
	// keeping strict priority over yaw.
	AirmodeRollPitchYaw
)

// MultirotorMixer combines normalized roll/pitch/yaw/thrust demands into
// per-rotor commands for a fixed geometry, resolving saturation according to
// the configured airmode. Not safe for concurrent use: outputsPrev, the
// scratch buffer and the saturation snapshot are cross-call state.
type MultirotorMixer struct {
	source ControlSource

	rotors     []Rotor // borrowed from the registry, never mutated
	rotorCount int

	rollScale    float64
	pitchScale   float64
	yawScale     float64
	idleSpeed    float64 // already shifted to the output range
	thrustFactor float64
	airmode      Airmode

	outputsPrev []float64
	tmp         []float64
	deltaOutMax float64

	status SaturationStatus
}

// NewMultirotorMixer builds a mixer bound to geom. The per-axis scales and
// idle speed are taken as configured (idle in [0, 1], remapped internally);
// scratch buffers are sized to the rotor count here and never resized.
func NewMultirotorMixer(source ControlSource, geom *Geometry, rollScale, pitchScale, yawScale, idleSpeed float64) *MultirotorMixer {
	m := &MultirotorMixer{
		source:     source,
		rotors:     geom.Rotors,
		rotorCount: geom.RotorCount(),
		rollScale:  rollScale,
		pitchScale: pitchScale,
		yawScale:   yawScale,
		// Shift idle to the output range once, here, instead of every cycle.
		idleSpeed:   -1.0 + idleSpeed*2.0,
		outputsPrev: make([]float64, geom.RotorCount()),
		tmp:         make([]float64, geom.RotorCount()),
	}
	for i := range m.outputsPrev {
		m.outputsPrev[i] = m.idleSpeed
	}
	return m
}

// SetAirmode selects the saturation priority policy.
func (m *MultirotorMixer) SetAirmode(a Airmode) {
	m.airmode = a
}

// SetThrustFactor sets the quadratic share of the motor thrust model
// (thrust = (1-f)*cmd + f*cmd^2). Zero disables linearization.
func (m *MultirotorMixer) SetThrustFactor(f float64) {
	m.thrustFactor = f
}

// SetSlewLimit arms per-rotor slew limiting for the next Mix call only.
// The limit is consumed and reset so a stale value never carries over.
func (m *MultirotorMixer) SetSlewLimit(deltaOutMax float64) {
	m.deltaOutMax = deltaOutMax
}

// Saturation returns the snapshot accumulated by the last Mix call.
func (m *MultirotorMixer) Saturation() SaturationStatus {
	return m.status
}

// RotorCount returns the number of output channels this mixer writes.
func (m *MultirotorMixer) RotorCount() int {
	return m.rotorCount
}

// Mix pulls the current demands, writes one command per rotor into outputs
// and returns the rotor count, or 0 when outputs is too small.
func (m *MultirotorMixer) Mix(outputs []float64) int {
	if len(outputs) < m.rotorCount {
		return 0
	}
	out := outputs[:m.rotorCount]

	roll := clamp(m.source.Control(GroupAttitude, IndexRoll)*m.rollScale, -1, 1)
	pitch := clamp(m.source.Control(GroupAttitude, IndexPitch)*m.pitchScale, -1, 1)
	yaw := clamp(m.source.Control(GroupAttitude, IndexYaw)*m.yawScale, -1, 1)
	thrust := clamp(m.source.Control(GroupAttitude, IndexThrust), 0, 1)

	m.status = SaturationStatus{}

	switch m.airmode {
	case AirmodeRollPitch:
		m.mixAirmodeRP(roll, pitch, yaw, thrust, out)
	case AirmodeRollPitchYaw:
		m.mixAirmodeRPY(roll, pitch, yaw, thrust, out)
	default:
		m.mixAirmodeDisabled(roll, pitch, yaw, thrust, out)
	}

	// Apply the thrust model and scale to [idleSpeed, 1]. The outputs are
	// expected in [0, 1] here but can exceed it, e.g. when a roll demand
	// exceeds the motor band limit.
	for i := range out {
		if m.thrustFactor > 0 {
			f := m.thrustFactor
			v := out[i]
			if v < 0 {
				v = 0
			}
			out[i] = -(1-f)/(2*f) + math.Sqrt((1-f)*(1-f)/(4*f*f)+v/f)
		}
		out[i] = clamp(m.idleSpeed+out[i]*(1-m.idleSpeed), m.idleSpeed, 1)
	}

	// Slew limiting and saturation reporting.
	for i := range out {
		clippingHigh := false
		clippingLowRollPitch := false
		clippingLowYaw := false

		// Low clipping against the static limit is only reported when the
		// airmode keeps thrust from compensating; otherwise the integrators
		// can stay enabled, which tracks better.
		if out[i] < m.idleSpeed+0.01 {
			switch m.airmode {
			case AirmodeDisabled:
				clippingLowRollPitch = true
				clippingLowYaw = true
			case AirmodeRollPitch:
				clippingLowYaw = true
			}
		}

		if m.deltaOutMax > 0 {
			deltaOut := out[i] - m.outputsPrev[i]
			if deltaOut > m.deltaOutMax {
				out[i] = m.outputsPrev[i] + m.deltaOutMax
				clippingHigh = true
			} else if deltaOut < -m.deltaOutMax {
				out[i] = m.outputsPrev[i] - m.deltaOutMax
				clippingLowRollPitch = true
				clippingLowYaw = true
			}
		}

		m.outputsPrev[i] = out[i]
		m.status.update(m.rotors[i], clippingHigh, clippingLowRollPitch, clippingLowYaw)
	}

	// Force the caller to re-arm slew limiting every cycle.
	m.deltaOutMax = 0

	return m.rotorCount
}

// mixAirmodeDisabled mixes without ever allowing thrust to increase.
func (m *MultirotorMixer) mixAirmodeDisabled(roll, pitch, yaw, thrust float64, outputs []float64) {
	// Mix without yaw.
	for i := range outputs {
		outputs[i] = roll*m.rotors[i].Roll +
			pitch*m.rotors[i].Pitch +
			thrust*m.rotors[i].Thrust
		m.tmp[i] = m.rotors[i].Thrust
	}

	// Only reduce thrust.
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, true)

	// Reduce roll/pitch acceleration if needed to unsaturate.
	for i := range outputs {
		m.tmp[i] = m.rotors[i].Roll
	}
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, false)

	for i := range outputs {
		m.tmp[i] = m.rotors[i].Pitch
	}
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, false)

	m.mixYaw(yaw, outputs)
}

// mixAirmodeRP mixes with airmode on roll and pitch, but not yaw.
func (m *MultirotorMixer) mixAirmodeRP(roll, pitch, yaw, thrust float64, outputs []float64) {
	for i := range outputs {
		outputs[i] = roll*m.rotors[i].Roll +
			pitch*m.rotors[i].Pitch +
			thrust*m.rotors[i].Thrust
		m.tmp[i] = m.rotors[i].Thrust
	}

	// Thrust may move in both directions to unsaturate.
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, false)

	m.mixYaw(yaw, outputs)
}

// mixAirmodeRPY mixes with full airmode on all axes.
func (m *MultirotorMixer) mixAirmodeRPY(roll, pitch, yaw, thrust float64, outputs []float64) {
	for i := range outputs {
		outputs[i] = roll*m.rotors[i].Roll +
			pitch*m.rotors[i].Pitch +
			yaw*m.rotors[i].Yaw +
			thrust*m.rotors[i].Thrust
		m.tmp[i] = m.rotors[i].Thrust
	}

	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, false)

	// Unsaturate along yaw alone so roll/pitch keep strict priority.
	for i := range outputs {
		m.tmp[i] = m.rotors[i].Yaw
	}
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, false)
}

// mixYaw adds yaw on top of an already mixed output vector and resolves the
// saturation it introduces without touching roll/pitch.
func (m *MultirotorMixer) mixYaw(yaw float64, outputs []float64) {
	for i := range outputs {
		outputs[i] += yaw * m.rotors[i].Yaw
		m.tmp[i] = m.rotors[i].Yaw
	}

	// The extended upper band leaves some yaw authority at full thrust.
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1.15, false)

	for i := range outputs {
		m.tmp[i] = m.rotors[i].Thrust
	}
	applyDesaturation(m.tmp, outputs, &m.status, 0, 1, true)
}
