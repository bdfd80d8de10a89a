package actuator

import (
	"math"
	"testing"
)

func TestMapperDisarmedWritesFailsafe(t *testing.T) {
	m := NewMapper(4)

	outputs := []float64{1, 1, 1, 1}
	pulses := make([]float64, 4)
	m.Map(outputs, pulses)

	for i, p := range pulses {
		if p != MinPulseWidthUS {
			t.Errorf("pulses[%d] = %v while disarmed, want %v", i, p, MinPulseWidthUS)
		}
	}
}

func TestMapperFailsafePulseOverride(t *testing.T) {
	m := NewMapper(2)
	m.SetFailsafePulse(1500)

	pulses := make([]float64, 2)
	m.Map([]float64{1, -1}, pulses)

	for i, p := range pulses {
		if p != 1500 {
			t.Errorf("pulses[%d] = %v, want 1500", i, p)
		}
	}
}

func TestMapperArmedRange(t *testing.T) {
	m := NewMapper(3)
	m.Arm()

	outputs := []float64{-1, 0, 1}
	pulses := make([]float64, 3)
	m.Map(outputs, pulses)

	want := []float64{1000, 1500, 2000}
	for i := range pulses {
		if math.Abs(pulses[i]-want[i]) > 1e-9 {
			t.Errorf("pulses[%d] = %v, want %v", i, pulses[i], want[i])
		}
	}
}

func TestMapperClipsOutOfRangeOutputs(t *testing.T) {
	m := NewMapper(2)
	m.Arm()

	pulses := make([]float64, 2)
	m.Map([]float64{-3, 3}, pulses)

	if pulses[0] != MinPulseWidthUS || pulses[1] != MaxPulseWidthUS {
		t.Errorf("pulses = %v, want clipped to [%v, %v]", pulses, MinPulseWidthUS, MaxPulseWidthUS)
	}
}

func TestMapRangeGeneric(t *testing.T) {
	if got := mapRange(uint32(1500), 1000, 2000, 0, 100); got != 50 {
		t.Errorf("mapRange uint32 = %v, want 50", got)
	}
	if got := mapRange(0.25, 0.0, 1.0, 1000.0, 2000.0); math.Abs(got-1250) > 1e-9 {
		t.Errorf("mapRange float64 = %v, want 1250", got)
	}
}
