package mixer

import (
	"math"
	"testing"
)

func TestDesaturationGainInBand(t *testing.T) {
	direction := []float64{1, 1, 1, 1}
	outputs := []float64{0.1, 0.4, 0.6, 0.9}
	var status SaturationStatus

	k := desaturationGain(direction, outputs, &status, 0, 1)
	if k != 0 {
		t.Errorf("gain for in-band outputs = %v, want 0", k)
	}
	if status.MotorPos || status.MotorNeg {
		t.Error("in-band outputs must not set motor saturation flags")
	}
}

func TestApplyDesaturationInBandUnchanged(t *testing.T) {
	direction := []float64{1, 1, 1, 1}
	outputs := []float64{0.1, 0.4, 0.6, 0.9}
	want := []float64{0.1, 0.4, 0.6, 0.9}
	var status SaturationStatus

	applyDesaturation(direction, outputs, &status, 0, 1, false)
	for i := range outputs {
		if outputs[i] != want[i] {
			t.Errorf("outputs[%d] = %v, want %v (unchanged)", i, outputs[i], want[i])
		}
	}
}

func TestApplyDesaturationPullsHighViolationDown(t *testing.T) {
	direction := []float64{1, 1, 1, 1}
	outputs := []float64{0.2, 0.5, 0.8, 1.3}
	var status SaturationStatus

	applyDesaturation(direction, outputs, &status, 0, 1, false)

	for i := range outputs {
		if outputs[i] < -1e-9 || outputs[i] > 1+1e-9 {
			t.Errorf("outputs[%d] = %v, want within [0, 1]", i, outputs[i])
		}
	}
	if !status.MotorPos {
		t.Error("high violation must set MotorPos")
	}
	// The correction is a uniform shift along the direction vector.
	if diff := (outputs[3] - outputs[0]) - 1.1; math.Abs(diff) > 1e-9 {
		t.Errorf("relative spread changed by %v, want preserved", diff)
	}
}

func TestApplyDesaturationReduceOnlyNeverBoosts(t *testing.T) {
	direction := []float64{1, 1, 1, 1}
	// Low violation: the unconstrained correction would be positive.
	outputs := []float64{-0.3, 0.1, 0.2, 0.4}
	want := []float64{-0.3, 0.1, 0.2, 0.4}
	var status SaturationStatus

	applyDesaturation(direction, outputs, &status, 0, 1, true)
	for i := range outputs {
		if outputs[i] != want[i] {
			t.Errorf("reduceOnly modified outputs[%d]: %v, want %v", i, outputs[i], want[i])
		}
	}
}

func TestApplyDesaturationSecondPassEquilibrates(t *testing.T) {
	direction := []float64{1, 1, 1, 1}
	// Spread (1.4) exceeds the band width (1.0): both bounds cannot be
	// satisfied, the damped second pass balances the overshoot.
	outputs := []float64{-0.1, 0.3, 0.9, 1.3}
	var status SaturationStatus

	applyDesaturation(direction, outputs, &status, 0, 1, false)

	low := -outputs[0]
	high := outputs[3] - 1
	if math.Abs(low-high) > 1e-9 {
		t.Errorf("residual violations not balanced: low %v high %v", low, high)
	}
	if !status.MotorPos || !status.MotorNeg {
		t.Error("both motor flags expected when both bounds are violated")
	}
}

func TestDesaturationGainSkipsZeroDirection(t *testing.T) {
	direction := []float64{0, 0, 0, 1}
	outputs := []float64{1.5, 0.5, 0.5, 0.5}
	var status SaturationStatus

	k := desaturationGain(direction, outputs, &status, 0, 1)
	// The violating channel has no direction component, so no finite gain
	// can fix it; the solver must not divide by zero.
	if math.IsInf(k, 0) || math.IsNaN(k) {
		t.Fatalf("gain = %v, want finite", k)
	}
	if k != 0 {
		t.Errorf("gain = %v, want 0 (violation not correctable)", k)
	}
}
