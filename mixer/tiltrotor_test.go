package mixer

import (
	"math"
	"testing"
)

func hoverSource(thrust, tilt float64) constantSource {
	var src constantSource
	src.values[IndexThrust] = thrust
	src.values[IndexTilt] = tilt
	return src
}

func TestTiltRotorRejectsShortOutputBuffer(t *testing.T) {
	a := NewTiltRotorAllocator(hoverSource(0.5, 0), DefaultAirframe())

	outputs := make([]float64, TiltRotorChannels-1)
	if n := a.Mix(outputs); n != 0 {
		t.Errorf("Mix with short buffer = %d, want 0", n)
	}
}

func TestTiltRotorHoverIsBalanced(t *testing.T) {
	a := NewTiltRotorAllocator(hoverSource(0.5, 0), DefaultAirframe())

	outputs := make([]float64, TiltRotorChannels)
	if n := a.Mix(outputs); n != TiltRotorChannels {
		t.Fatalf("Mix = %d, want %d", n, TiltRotorChannels)
	}

	// No moments demanded: the four rotors share the load equally.
	for i := 1; i < 4; i++ {
		if math.Abs(outputs[i]-outputs[0]) > 1e-9 {
			t.Errorf("rotor %d = %v, want %v", i, outputs[i], outputs[0])
		}
	}
	// The tilt servos mirror each other.
	if math.Abs(outputs[4]+outputs[5]) > 1e-9 {
		t.Errorf("tilt servos not mirrored: left %v right %v", outputs[4], outputs[5])
	}
	// No surface deflection without a roll demand.
	if math.Abs(outputs[6]) > 1e-9 {
		t.Errorf("elevon = %v, want 0", outputs[6])
	}
}

func TestTiltRotorSymmetryHoldsUnderTilt(t *testing.T) {
	a := NewTiltRotorAllocator(hoverSource(0.5, 0.5), DefaultAirframe())

	outputs := make([]float64, TiltRotorChannels)
	a.Mix(outputs)

	if math.Abs(outputs[4]+outputs[5]) > 1e-9 {
		t.Errorf("tilt servos not mirrored at partial tilt: left %v right %v", outputs[4], outputs[5])
	}
}

func TestTiltRotorThrustMonotonic(t *testing.T) {
	outputs := make([]float64, TiltRotorChannels)

	a := NewTiltRotorAllocator(hoverSource(0.3, 0), DefaultAirframe())
	a.Mix(outputs)
	low := outputs[0]

	a = NewTiltRotorAllocator(hoverSource(0.7, 0), DefaultAirframe())
	a.Mix(outputs)
	high := outputs[0]

	if high <= low {
		t.Errorf("rotor command did not grow with thrust: %v at 0.3, %v at 0.7", low, high)
	}
}

func TestTiltRotorCorrectionsFadeOutAtLowThrust(t *testing.T) {
	// Thrust below the correction threshold: the arctangent correction must
	// be fully suppressed even with a yaw demand present.
	src := hoverSource(0.02, 0)
	src.values[IndexYaw] = 1
	a := NewTiltRotorAllocator(src, DefaultAirframe())

	outputs := make([]float64, TiltRotorChannels)
	a.Mix(outputs)

	frame := DefaultAirframe()
	neutralLeft := -frame.TiltServoGain*0 + frame.TiltServoOffset
	if math.Abs(outputs[4]-neutralLeft) > 1e-9 {
		t.Errorf("left tilt servo = %v, want neutral %v at low thrust", outputs[4], neutralLeft)
	}
}

func TestTiltRotorSlewLimitIsOneShot(t *testing.T) {
	a := NewTiltRotorAllocator(hoverSource(0.5, 0), DefaultAirframe())

	outputs := make([]float64, TiltRotorChannels)
	a.Mix(outputs)
	prevLeft := outputs[4]

	// Swing the tilt command hard with a tight rate limit armed.
	a.source = hoverSource(0.5, 1)
	a.SetSlewLimit(0.01)
	a.Mix(outputs)

	if d := math.Abs(outputs[4] - prevLeft); d > 0.01+1e-9 {
		t.Errorf("tilt servo moved %v in one cycle, limit 0.01", d)
	}
	if st := a.Saturation(); !st.Valid || !st.Saturated() {
		t.Errorf("rate clipping not reported: %+v", st)
	}

	// Not re-armed: the next cycle moves freely.
	limited := outputs[4]
	a.Mix(outputs)
	if d := math.Abs(outputs[4] - limited); d <= 0.01+1e-9 {
		t.Errorf("slew limit persisted: moved only %v after reset", d)
	}
}

func TestTiltRotorSurfacesNeedAirspeed(t *testing.T) {
	src := hoverSource(0.5, 0)
	src.values[IndexRoll] = 0.5

	// Static air: the elevons have no authority and stay centered.
	a := NewTiltRotorAllocator(src, DefaultAirframe())
	outputs := make([]float64, TiltRotorChannels)
	a.Mix(outputs)
	if math.Abs(outputs[6]) > 1e-9 {
		t.Errorf("elevon deflected at zero airspeed: %v", outputs[6])
	}

	// Fast forward flight: the same roll demand now deflects the surface.
	src.values[IndexAirspeed] = 0.5
	a = NewTiltRotorAllocator(src, DefaultAirframe())
	a.Mix(outputs)
	if math.Abs(outputs[6]) < 1e-6 {
		t.Errorf("elevon stayed centered at cruise airspeed: %v", outputs[6])
	}
}
