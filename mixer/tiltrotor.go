package mixer

import "math"

// TiltRotorChannels is the number of output channels the tilt-rotor
// allocator writes: four rotors, two tilt servos, one elevon pair.
const TiltRotorChannels = 7

// Airframe holds the physical constants of the tilt-rotor platform. They
// are fixed per airframe and supplied at construction.
type Airframe struct {
	// Geometry (meters).
	H0 float64 // rotor plane offset above the tilt axis
	L0 float64 // lateral arm, rotor pair to roll axis
	L1 float64 // longitudinal arm, tilt axis to CG
	L3 float64 // front rotor arm on the tilt mechanism
	L4 float64 // rear rotor arm on the tilt mechanism

	// Rotor coefficients.
	CT float64 // thrust coefficient
	CQ float64 // torque coefficient

	// Aerodynamic surface model.
	CLa  float64 // aileron roll effectiveness
	CMe  float64 // elevator pitch effectiveness
	CNr  float64 // rudder yaw effectiveness
	S    float64 // wing reference area, m^2
	B    float64 // wing span, m
	CBar float64 // mean chord, m

	// Limits.
	DeltaMin      float64 // surface deflection, rad
	DeltaMax      float64 // surface deflection, rad
	TiltDeviation float64 // max per-side tilt correction, rad

	// Denormalization maxima for the incoming demands.
	ThrustMax   float64 // N
	MomentMax   float64 // Nm
	TiltMax     float64 // rad
	AirspeedMax float64 // m/s

	// Inverse-quadratic thrust-to-command curve: cmd = c0 + sqrt(c1 + c2*T).
	ThrustCurveC0 float64
	ThrustCurveC1 float64
	ThrustCurveC2 float64

	// Tilt servo linearization: cmd = gain*chi +/- offset.
	TiltServoGain   float64
	TiltServoOffset float64
}

// DefaultAirframe returns the constants of the reference tilt-rotor platform.
func DefaultAirframe() Airframe {
	return Airframe{
		H0: 0.015,
		L0: 0.29,
		L1: 0.1575,
		L3: 0.105,
		L4: 0.105,

		CT: 1.11919e-5,
		CQ: 1.99017e-7,

		CLa:  0.058649,
		CMe:  0.55604,
		CNr:  0.055604,
		S:    0.4266,
		B:    2.0,
		CBar: 0.2,

		DeltaMin:      radians(-35),
		DeltaMax:      radians(35),
		TiltDeviation: radians(10),

		ThrustMax:   48.0,
		MomentMax:   2.0,
		TiltMax:     radians(90),
		AirspeedMax: 40.0,

		ThrustCurveC0: -1.146746,
		ThrustCurveC1: 0.0821782,
		ThrustCurveC2: 0.355259,

		TiltServoGain:   0.9602,
		TiltServoOffset: 0.7106,
	}
}

// TiltRotorAllocator solves the control allocation of a fixed tilt-rotor
// airframe in closed form: it inverts the physical allocation matrix
// analytically for the commanded tilt angle and distributes the demanded
// moments and thrust over four rotors, two tilt servos and the elevon pair.
// Not safe for concurrent use.
type TiltRotorAllocator struct {
	source ControlSource
	frame  Airframe

	outputsPrev []float64
	deltaOutMax float64

	status SaturationStatus
}

// NewTiltRotorAllocator builds an allocator for the given airframe.
func NewTiltRotorAllocator(source ControlSource, frame Airframe) *TiltRotorAllocator {
	return &TiltRotorAllocator{
		source:      source,
		frame:       frame,
		outputsPrev: make([]float64, TiltRotorChannels),
	}
}

// SetSlewLimit arms slew limiting of the tilt servo channels for the next
// Mix call only; it resets after use.
func (a *TiltRotorAllocator) SetSlewLimit(deltaOutMax float64) {
	a.deltaOutMax = deltaOutMax
}

// Saturation returns the snapshot accumulated by the last Mix call.
func (a *TiltRotorAllocator) Saturation() SaturationStatus {
	return a.status
}

// Mix allocates the current demands over the 7 actuator channels. Channels
// 0-3 are rotor commands, 4 and 5 the left and right tilt servos, 6 the
// elevon deflection. Returns 0 when outputs is too small.
func (a *TiltRotorAllocator) Mix(outputs []float64) int {
	if len(outputs) < TiltRotorChannels {
		return 0
	}

	a.status = SaturationStatus{}

	a.allocate(outputs)

	// Slew limit the tilt servos against the previous cycle. The rotors can
	// change thrust far faster than the tilt mechanism can move, so only
	// channels 4 and 5 are limited.
	if a.deltaOutMax > 0 {
		for _, ch := range [2]int{4, 5} {
			deltaOut := outputs[ch] - a.outputsPrev[ch]
			if deltaOut > a.deltaOutMax {
				outputs[ch] = a.outputsPrev[ch] + a.deltaOutMax
				a.status.MotorPos = true
				a.status.Valid = true
			} else if deltaOut < -a.deltaOutMax {
				outputs[ch] = a.outputsPrev[ch] - a.deltaOutMax
				a.status.MotorNeg = true
				a.status.Valid = true
			}
		}
	}

	a.outputsPrev[4] = outputs[4]
	a.outputsPrev[5] = outputs[5]

	// Force the caller to re-arm slew limiting every cycle.
	a.deltaOutMax = 0

	return TiltRotorChannels
}

func (a *TiltRotorAllocator) allocate(outputs []float64) {
	f := &a.frame

	c := f.CQ / f.CT

	lFactor := f.CLa * f.S * f.B
	mFactor := f.CMe * f.S * f.CBar
	nFactor := f.CNr * f.S * f.B

	// Load demands, clamped to their declared input ranges.
	rollM := clamp(a.source.Control(GroupAttitude, IndexRoll), -1, 1)
	pitchM := clamp(a.source.Control(GroupAttitude, IndexPitch), -1, 1)
	yawM := clamp(a.source.Control(GroupAttitude, IndexYaw), -1, 1)
	thrust := clamp(a.source.Control(GroupAttitude, IndexThrust), 0, 1)
	tiltCmd := clamp(a.source.Control(GroupAttitude, IndexTilt), -1, 1)
	airspeed := clamp(a.source.Control(GroupAttitude, IndexAirspeed), 1e-8, 1)

	// Denormalize to physical units.
	l := rollM * f.MomentMax
	m := pitchM * f.MomentMax
	n := yawM * f.MomentMax
	t := thrust * f.ThrustMax
	chiCmd := tiltCmd * f.TiltMax
	airspeed *= f.AirspeedMax

	// Control surface deflections from the linear aerodynamic model.
	qBar := 0.5 * 1.2 * airspeed * airspeed
	lSurf := lFactor * qBar
	mSurf := mFactor * qBar
	nSurf := nFactor * qBar

	// Fade surface authority in with airspeed to avoid bang-bang behaviour
	// at low speeds where qBar is tiny and the inversion blows up.
	scale := clamp((airspeed-4.0)/6.0, 0, 1)

	deltaA := clamp(l/lSurf*scale, f.DeltaMin, f.DeltaMax)
	deltaE := clamp(m/mSurf*scale, f.DeltaMin, f.DeltaMax)
	deltaR := clamp(n/nSurf*scale, f.DeltaMin, f.DeltaMax)

	// The rotors only need to produce what the surfaces do not.
	l -= lSurf * deltaA
	m -= mSurf * deltaE
	n -= nSurf * deltaR

	cChi := math.Cos(chiCmd)
	sChi := math.Sin(chiCmd)
	c2Chi := math.Cos(2 * chiCmd)
	s2Chi := math.Sin(2 * chiCmd)
	cChi2 := cChi * cChi
	l34 := f.L3 + f.L4
	l1Sq := f.L1 * f.L1
	l3Sq := f.L3 * f.L3
	l4Sq := f.L4 * f.L4

	temp1 := 2*l1Sq + f.L3*f.L4
	temp2 := 2*temp1 + l3Sq + l4Sq

	denom1 := temp2 + 4*cChi*f.L1*l34
	denom2 := 4 * (c*c + f.L0*f.L0)

	// Closed-form pseudo-inverse A_pinv = A^T (A A^T)^-1 of the 5x8
	// allocation matrix, evaluated at the commanded tilt angle. Each pair
	// of rows maps to one rotor's in-plane force components.
	var pinv [8][5]float64

	for i := 0; i < 8; i++ {
		sign1 := -1.0
		if i >= 2 && i <= 5 {
			sign1 = 1.0
		}
		sign2 := -1.0
		if i >= 4 {
			sign2 = 1.0
		}
		sign3 := -1.0
		if i%4 == 0 || (i-1)%4 == 0 {
			sign3 = 1.0
		}
		lArm := 0.5*(1+sign1)*f.L3 + 0.5*(1-sign1)*f.L4
		lArmSq := lArm * lArm

		if i%2 == 0 {
			pinv[i][0] = (temp2*cChi - sign1*2*f.H0*l34*sChi + 4*f.L1*l34*cChi2) / (4 * denom1)
			pinv[i][1] = -((temp1+lArmSq)*sChi + f.L1*l34*s2Chi) / (2 * denom1)
			pinv[i][2] = (-sign2*f.L0*sChi + sign3*c*cChi) / denom2
			pinv[i][3] = -sign1 * sChi * l34 / (2 * denom1)
			pinv[i][4] = (sign2*f.L0*cChi + sign3*c*sChi) / denom2
		} else {
			pinv[i][0] = (temp2*sChi + sign1*2*f.H0*(cChi*l34+2*f.L1) + 2*f.L1*l34*s2Chi) / (4 * denom1)
			pinv[i][1] = (2*f.L1*lArm + (temp1+lArmSq)*cChi + f.L1*l34*c2Chi) / (2 * denom1)
			pinv[i][2] = (sign2*f.L0*cChi + sign3*c*sChi) / denom2
			pinv[i][3] = sign1 * (2*f.L1 + l34*cChi) / (2 * denom1)
			pinv[i][4] = (sign2*f.L0*sChi - sign3*c*cChi) / denom2
		}
	}

	// Virtual force components, one sine/cosine pair per rotor side.
	var v [8]float64
	for i := 0; i < 8; i++ {
		v[i] = pinv[i][0]*t*sChi +
			pinv[i][1]*t*cChi +
			pinv[i][2]*l +
			pinv[i][3]*m +
			pinv[i][4]*n
	}

	// Per-side tilt corrections, faded in above the thrust threshold so the
	// arctangent of near-zero forces cannot command wild tilt swings.
	scale = clamp(0.25*(t-2.0), 0, 1)
	dChiR := scale * math.Atan2(v[0]+v[2], v[1]+v[3])
	dChiL := scale * math.Atan2(v[4]+v[6], v[5]+v[7])

	// Re-project the virtual forces onto the corrected tilt angles.
	t1 := v[0]*math.Sin(dChiR) + v[1]*math.Cos(dChiR)
	t2 := v[2]*math.Sin(dChiR) + v[3]*math.Cos(dChiR)
	t3 := v[4]*math.Sin(dChiL) + v[5]*math.Cos(dChiL)
	t4 := v[6]*math.Sin(dChiL) + v[7]*math.Cos(dChiL)

	dChiR = clamp(dChiR, -f.TiltDeviation, f.TiltDeviation)
	dChiL = clamp(dChiL, -f.TiltDeviation, f.TiltDeviation)

	chiR := chiCmd + dChiR
	chiL := chiCmd + dChiL

	outputs[0] = a.thrustToCommand(t1)
	outputs[1] = a.thrustToCommand(t2)
	outputs[2] = a.thrustToCommand(t3)
	outputs[3] = a.thrustToCommand(t4)
	outputs[4] = -f.TiltServoGain*chiL + f.TiltServoOffset
	outputs[5] = f.TiltServoGain*chiR - f.TiltServoOffset
	outputs[6] = -(2*deltaA - (f.DeltaMax + f.DeltaMin)) / (f.DeltaMax - f.DeltaMin)
}

// thrustToCommand maps a rotor thrust magnitude through the inverse
// quadratic actuator response curve.
func (a *TiltRotorAllocator) thrustToCommand(thrust float64) float64 {
	arg := a.frame.ThrustCurveC1 + a.frame.ThrustCurveC2*thrust
	if arg < 0 {
		arg = 0
	}
	return a.frame.ThrustCurveC0 + math.Sqrt(arg)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
