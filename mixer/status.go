package mixer

// SaturationStatus reports which demand directions are currently limited by
// actuator bounds. The flags accumulate over one Mix call: they are cleared
// at the start of every mix cycle and read by the outer control loop
// afterwards for anti-windup gating. A set RollPos means further positive
// roll demand would worsen saturation.
type SaturationStatus struct {
	RollPos   bool
	RollNeg   bool
	PitchPos  bool
	PitchNeg  bool
	YawPos    bool
	YawNeg    bool
	ThrustPos bool
	ThrustNeg bool
	MotorPos  bool
	MotorNeg  bool
	Valid     bool
}

// Saturated reports whether any axis or motor flag is set.
func (s SaturationStatus) Saturated() bool {
	return s.RollPos || s.RollNeg || s.PitchPos || s.PitchNeg ||
		s.YawPos || s.YawNeg || s.ThrustPos || s.ThrustNeg ||
		s.MotorPos || s.MotorNeg
}

// update records that the rotor at index hit its ceiling or floor, and
// infers which demand directions would worsen that saturation from the sign
// of the rotor's axis coefficients. Low clipping is reported separately for
// roll/pitch and yaw so the caller can gate them by airmode policy.
func (s *SaturationStatus) update(rotor Rotor, clippingHigh, clippingLowRollPitch, clippingLowYaw bool) {
	if clippingHigh {
		// Saturated at the upper limit: positive demand along a positive
		// coefficient digs the rotor in deeper.
		if rotor.Roll > 0 {
			s.RollPos = true
		} else if rotor.Roll < 0 {
			s.RollNeg = true
		}

		if rotor.Pitch > 0 {
			s.PitchPos = true
		} else if rotor.Pitch < 0 {
			s.PitchNeg = true
		}

		if rotor.Yaw > 0 {
			s.YawPos = true
		} else if rotor.Yaw < 0 {
			s.YawNeg = true
		}

		s.ThrustPos = true
	}

	if clippingLowRollPitch {
		// Saturated at the lower limit: the signs flip.
		if rotor.Roll > 0 {
			s.RollNeg = true
		} else if rotor.Roll < 0 {
			s.RollPos = true
		}

		if rotor.Pitch > 0 {
			s.PitchNeg = true
		} else if rotor.Pitch < 0 {
			s.PitchPos = true
		}

		s.ThrustNeg = true
	}

	if clippingLowYaw {
		if rotor.Yaw > 0 {
			s.YawNeg = true
		} else if rotor.Yaw < 0 {
			s.YawPos = true
		}
	}

	s.Valid = true
}
