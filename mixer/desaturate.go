package mixer

import "math"

const desaturationEpsilon = 1e-9

// desaturationGain computes the single scalar k such that adding
// k*direction[i] to every output pulls the worst violations of [min, max]
// back toward the band with the least disruption. Channels with a near-zero
// direction component are skipped: they cannot contribute to un-saturating.
// Motor saturation flags are recorded on status as a side effect.
func desaturationGain(direction, outputs []float64, status *SaturationStatus, min, max float64) float64 {
	kMin := 0.0
	kMax := 0.0

	for i := range outputs {
		if math.Abs(direction[i]) < desaturationEpsilon {
			continue
		}

		if outputs[i] < min {
			k := (min - outputs[i]) / direction[i]
			if k < kMin {
				kMin = k
			}
			if k > kMax {
				kMax = k
			}
			status.MotorNeg = true
		}

		if outputs[i] > max {
			k := (max - outputs[i]) / direction[i]
			if k < kMin {
				kMin = k
			}
			if k > kMax {
				kMax = k
			}
			status.MotorPos = true
		}
	}

	// kMin and kMax bracket the corrections needed by the most-negative and
	// most-positive violations; their sum balances both at once.
	return kMin + kMax
}

// applyDesaturation moves outputs along direction until they fit [min, max]
// as well as a single scalar correction allows. With reduceOnly set, a
// correction that would increase the outputs (k > 0) is skipped entirely:
// that is how thrust is kept from boosting when airmode is disabled.
func applyDesaturation(direction, outputs []float64, status *SaturationStatus, min, max float64, reduceOnly bool) {
	k1 := desaturationGain(direction, outputs, status, min, max)
	if reduceOnly && k1 > 0 {
		return
	}

	for i := range outputs {
		outputs[i] += k1 * direction[i]
	}

	// A second pass resolves what the first cannot: when the spread of the
	// outputs exceeds the band width, a full correction overshoots to the
	// opposite bound. Adding half the residual gain equilibrates the two
	// sides without oscillating.
	k2 := 0.5 * desaturationGain(direction, outputs, status, min, max)
	for i := range outputs {
		outputs[i] += k2 * direction[i]
	}
}
