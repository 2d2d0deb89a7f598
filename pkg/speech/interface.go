package speech

import "time"

// ActivitySource defines the detector surface the session engine depends on.
// This interface allows for mock implementations in testing.
type ActivitySource interface {
	// ProcessLevel ingests one (level, audio-flowing) observation.
	ProcessLevel(levelDb float64, hasAudio bool)

	// SetOnActivityChange registers the single activity observer.
	SetOnActivityChange(fn func(active bool))

	// Start begins the periodic background release check.
	Start(interval time.Duration)

	// Stop halts the background release check.
	Stop()

	// IsActive returns the confirmed activity state.
	IsActive() bool

	// UpdateConfig applies a partial config update.
	UpdateConfig(u ConfigUpdate)

	// Destroy stops timers and clears the observer.
	Destroy()
}
