package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the audio engine
const (
	// Session attributes
	AttrSessionID = "session.id"

	// Mixer attributes
	AttrChannelAGain  = "mixer.channel_a_gain"
	AttrChannelBGain  = "mixer.channel_b_gain"
	AttrDuckAmount    = "mixer.duck_amount"
	AttrDuckAttackMs  = "mixer.duck_attack_ms"
	AttrDuckReleaseMs = "mixer.duck_release_ms"
	AttrIsDucking     = "mixer.is_ducking"

	// Detector attributes
	AttrThresholdDb    = "detector.threshold_db"
	AttrMinDurationMs  = "detector.min_duration_ms"
	AttrSilenceDelayMs = "detector.silence_delay_ms"
)

// SessionAttrs creates attributes for session information
func SessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
}

// DuckAttrs creates attributes describing a duck cycle
func DuckAttrs(channelAGain, channelBGain, duckAmount float64, attackMs, releaseMs int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrChannelAGain, channelAGain),
		attribute.Float64(AttrChannelBGain, channelBGain),
		attribute.Float64(AttrDuckAmount, duckAmount),
		attribute.Int(AttrDuckAttackMs, attackMs),
		attribute.Int(AttrDuckReleaseMs, releaseMs),
	}
}

// DetectorAttrs creates attributes describing the detector configuration
func DetectorAttrs(thresholdDb float64, minDurationMs, silenceDelayMs int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrThresholdDb, thresholdDb),
		attribute.Int(AttrMinDurationMs, minDurationMs),
		attribute.Int(AttrSilenceDelayMs, silenceDelayMs),
	}
}
