package speech

import "math"

// RMS returns the root-mean-square level of a frame of normalized float32
// samples. This is the amplitude proxy the transport's level meter is
// expected to feed through AmplitudeToDb into ProcessLevel.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// AmplitudeToDb converts a linear amplitude in [0, 1] to dBFS. Zero or
// negative amplitudes return negative infinity.
func AmplitudeToDb(amplitude float64) float64 {
	if math.IsNaN(amplitude) || amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
