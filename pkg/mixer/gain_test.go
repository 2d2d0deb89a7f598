package mixer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGain(t *testing.T) {
	t.Run("linear below the knee", func(t *testing.T) {
		assert.Equal(t, 0.5, ApplyGain(0.5, 1.0))
		assert.Equal(t, 0.25, ApplyGain(0.5, 0.5))
		assert.Equal(t, -0.45, ApplyGain(-0.9, 0.5))
		assert.Equal(t, 0.0, ApplyGain(0.7, 0.0))
	})

	t.Run("soft clip above the knee", func(t *testing.T) {
		assert.InDelta(t, math.Tanh(1.0), ApplyGain(1.0, 1.0), 1e-12)
		assert.InDelta(t, -math.Tanh(0.95), ApplyGain(-0.95, 1.0), 1e-12)
	})

	t.Run("gain clamped", func(t *testing.T) {
		// A gain above 1 must not amplify.
		assert.Equal(t, 0.5, ApplyGain(0.5, 3.0))
		assert.Equal(t, 0.0, ApplyGain(0.5, -1.0))
		assert.Equal(t, 0.0, ApplyGain(0.5, math.NaN()))
	})
}

func TestLimitOutputRegions(t *testing.T) {
	// Linear region.
	assert.InDelta(t, 0.7, LimitOutput(0.3, 0.4), 1e-12)
	assert.InDelta(t, -0.5, LimitOutput(-0.2, -0.3), 1e-12)

	// Soft knee in (0.9, 1.0].
	assert.InDelta(t, math.Tanh(0.95*1.2)*0.9, LimitOutput(0.5, 0.45), 1e-12)
	assert.InDelta(t, -math.Tanh(0.95*1.2)*0.9, LimitOutput(-0.5, -0.45), 1e-12)

	// Hard clamp beyond full scale.
	assert.Equal(t, 1.0, LimitOutput(0.9, 0.9))
	assert.Equal(t, -1.0, LimitOutput(-0.9, -0.9))
}

func TestLimitOutputSafety(t *testing.T) {
	// Every combination of full-scale inputs stays within [-1, 1].
	for a := -1.0; a <= 1.0; a += 0.05 {
		for b := -1.0; b <= 1.0; b += 0.05 {
			out := LimitOutput(a, b)
			assert.GreaterOrEqual(t, out, -1.0, "a=%v b=%v", a, b)
			assert.LessOrEqual(t, out, 1.0, "a=%v b=%v", a, b)
		}
	}
}

func TestPercentConversions(t *testing.T) {
	assert.Equal(t, 50.0, GainToPercent(0.5))
	assert.Equal(t, 100.0, GainToPercent(1.5))
	assert.Equal(t, 0.0, GainToPercent(-0.2))

	assert.Equal(t, 0.5, PercentToGain(50))
	assert.Equal(t, 1.0, PercentToGain(150))
	assert.Equal(t, 0.0, PercentToGain(-10))
	assert.Equal(t, 0.0, PercentToGain(math.NaN()))
}

func TestGainToDb(t *testing.T) {
	assert.Equal(t, 0.0, GainToDb(1.0))
	assert.InDelta(t, -6.0206, GainToDb(0.5), 1e-3)
	assert.True(t, math.IsInf(GainToDb(0), -1))
	assert.True(t, math.IsInf(GainToDb(-1), -1))
	assert.True(t, math.IsInf(GainToDb(math.NaN()), -1))
}
