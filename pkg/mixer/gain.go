package mixer

import "math"

// softClipKnee is the absolute level above which nonlinear limiting kicks in.
// Below it the signal path is exactly linear, so normal-level audio passes
// through untouched.
const softClipKnee = 0.9

// ApplyGain multiplies a sample by a gain and soft-clips the result. The gain
// is clamped to [0, 1]. Results with magnitude above the knee are shaped with
// tanh instead of hard-clipped, which avoids harsh digital clipping artifacts.
func ApplyGain(sample, gain float64) float64 {
	v := sample * clamp01(gain)
	if math.Abs(v) > softClipKnee {
		return math.Tanh(v)
	}
	return v
}

// LimitOutput combines one sample from each channel into a single output
// sample. Sums inside the knee pass through linearly; sums in (0.9, 1.0] get
// a soft-knee tanh curve; anything beyond full scale is hard-clamped so the
// result is always within [-1, 1].
func LimitOutput(a, b float64) float64 {
	sum := a + b
	abs := math.Abs(sum)
	switch {
	case abs > 1.0:
		if sum > 0 {
			return 1.0
		}
		return -1.0
	case abs > softClipKnee:
		return math.Tanh(sum*1.2) * 0.9
	default:
		return sum
	}
}

// GainToPercent converts a linear gain in [0, 1] to the host UI's percent
// scale.
func GainToPercent(gain float64) float64 {
	return clamp01(gain) * 100
}

// PercentToGain converts a percent value in [0, 100] to a linear gain.
func PercentToGain(percent float64) float64 {
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	if percent > 100 {
		return 1
	}
	return percent / 100
}

// GainToDb converts a linear gain to decibels. Gains at or below zero return
// negative infinity.
func GainToDb(gain float64) float64 {
	if math.IsNaN(gain) || gain <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(gain)
}

// clamp01 clamps v to [0, 1]; NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampRange clamps v to [lo, hi]; NaN maps to lo.
func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampMin floors an integer at lo.
func clampMin(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}
