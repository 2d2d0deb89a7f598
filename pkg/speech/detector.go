// Package speech provides level-based speech activity detection for the
// tutorial channel. The detector turns noisy, intermittent level observations
// into a stable boolean "speech is happening" signal using a minimum-duration
// gate on activation and a silence delay on release, so downstream ducking
// does not chatter.
//
// This is a deliberately simple threshold heuristic, not spectral voice
// activity detection: the transport's level meter supplies a dB level and an
// audio-flowing flag at a steady cadence (10 Hz in the reference use), and
// the detector does the rest.
package speech

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/tutorwatch/tutorwatch/pkg/clock"
)

const (
	// MinThresholdDb and MaxThresholdDb bound the activation threshold.
	MinThresholdDb = -60.0
	MaxThresholdDb = 0.0

	// MinDurationFloorMs is the shortest allowed confirmation window.
	MinDurationFloorMs = 50
	// SilenceDelayFloorMs is the shortest allowed release delay.
	SilenceDelayFloorMs = 100

	// DefaultTickInterval is the cadence of the background release check.
	DefaultTickInterval = 100 * time.Millisecond
)

// Config holds the detector settings.
type Config struct {
	// Enabled gates all detection. While disabled every sample evaluates
	// as silence.
	Enabled bool

	// ThresholdDb is the activation threshold in dBFS, within [-60, 0].
	ThresholdDb float64

	// MinDurationMs is how long the level must stay above threshold before
	// speech is confirmed.
	MinDurationMs int

	// SilenceDelayMs is how long the level must stay at or below threshold
	// before a confirmed speech state releases.
	SilenceDelayMs int
}

// ConfigUpdate is a partial config update. Nil fields are left unchanged;
// set fields are clamped, never rejected.
type ConfigUpdate struct {
	Enabled        *bool
	ThresholdDb    *float64
	MinDurationMs  *int
	SilenceDelayMs *int
}

// DefaultConfig returns the detector defaults used by the reference app.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		ThresholdDb:    -40,
		MinDurationMs:  200,
		SilenceDelayMs: 1000,
	}
}

func clampConfig(c Config) Config {
	c.ThresholdDb = clampRange(c.ThresholdDb, MinThresholdDb, MaxThresholdDb)
	if c.MinDurationMs < MinDurationFloorMs {
		c.MinDurationMs = MinDurationFloorMs
	}
	if c.SilenceDelayMs < SilenceDelayFloorMs {
		c.SilenceDelayMs = SilenceDelayFloorMs
	}
	return c
}

// Detector is the debounced speech activity detector. It moves through three
// implicit states: silent, pending (level above threshold but not yet for
// MinDurationMs) and active. The single observer registered with
// SetOnActivityChange fires exactly once per confirmed transition.
type Detector struct {
	mu  sync.Mutex
	clk clock.Clock
	cfg Config

	onChange func(active bool)

	// speechStart is when the level first exceeded the threshold since the
	// last confirmed silence; zero while silent.
	speechStart time.Time
	// lastSpeech is the most recent above-threshold observation.
	lastSpeech time.Time
	active     bool

	// Background release check, so a caller that stops sending samples
	// while active still releases after SilenceDelayMs.
	ticker  clock.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	destroyed bool
}

// NewDetector creates a Detector with the given config. A nil clock selects
// the wall clock. Out-of-range config values are clamped.
func NewDetector(cfg Config, clk clock.Clock) *Detector {
	if clk == nil {
		clk = clock.New()
	}
	return &Detector{
		clk: clk,
		cfg: clampConfig(cfg),
	}
}

// UpdateConfig applies a partial config update with clamp-not-reject
// semantics. Disabling the detector while active forces an immediate release
// callback; leaving the mixer stuck in a ducked state is worse than an extra
// transition.
func (d *Detector) UpdateConfig(u ConfigUpdate) {
	d.mu.Lock()

	if d.destroyed {
		d.mu.Unlock()
		return
	}

	if u.ThresholdDb != nil {
		d.cfg.ThresholdDb = clampRange(*u.ThresholdDb, MinThresholdDb, MaxThresholdDb)
	}
	if u.MinDurationMs != nil {
		d.cfg.MinDurationMs = *u.MinDurationMs
		if d.cfg.MinDurationMs < MinDurationFloorMs {
			d.cfg.MinDurationMs = MinDurationFloorMs
		}
	}
	if u.SilenceDelayMs != nil {
		d.cfg.SilenceDelayMs = *u.SilenceDelayMs
		if d.cfg.SilenceDelayMs < SilenceDelayFloorMs {
			d.cfg.SilenceDelayMs = SilenceDelayFloorMs
		}
	}

	var fire func(bool)
	if u.Enabled != nil {
		d.cfg.Enabled = *u.Enabled
		if !d.cfg.Enabled && d.active {
			d.active = false
			d.speechStart = time.Time{}
			fire = d.onChange
			log.Printf("[SpeechDetector] disabled while active, forcing release")
		}
	}
	d.mu.Unlock()

	if fire != nil {
		fire(false)
	}
}

// Config returns a copy of the current configuration.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetOnActivityChange registers the single observer invoked on each
// confirmed activity transition. Passing nil clears it.
func (d *Detector) SetOnActivityChange(fn func(active bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// ProcessLevel ingests one level observation. levelDb is the measured level
// of the channel in dBFS; hasAudio reports whether any audio is flowing at
// all. Expected to be called at a steady cadence by the transport's level
// meter.
func (d *Detector) ProcessLevel(levelDb float64, hasAudio bool) {
	d.mu.Lock()

	if d.destroyed {
		d.mu.Unlock()
		return
	}

	now := d.clk.Now()
	voiced := d.cfg.Enabled && hasAudio && levelDb > d.cfg.ThresholdDb

	var fire func(bool)
	var fireVal bool

	if !d.active {
		if voiced {
			if d.speechStart.IsZero() {
				d.speechStart = now
			}
			if now.Sub(d.speechStart) >= time.Duration(d.cfg.MinDurationMs)*time.Millisecond {
				d.active = true
				d.lastSpeech = now
				fire, fireVal = d.onChange, true
			}
		} else {
			// Burst too short to confirm; start over.
			d.speechStart = time.Time{}
		}
	} else {
		if voiced {
			d.lastSpeech = now
		} else if now.Sub(d.lastSpeech) >= time.Duration(d.cfg.SilenceDelayMs)*time.Millisecond {
			d.active = false
			d.speechStart = time.Time{}
			fire, fireVal = d.onChange, false
		}
	}
	d.mu.Unlock()

	// Fired outside the lock so the observer may call back into the
	// detector.
	if fire != nil {
		fire(fireVal)
	}
}

// IsActive returns the confirmed, debounced activity state.
func (d *Detector) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Start begins the periodic background release check. Calling Start while
// already running restarts the ticker with the new interval. An interval of
// zero or below selects DefaultTickInterval.
func (d *Detector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	if d.running {
		d.ticker.Reset(interval)
		d.mu.Unlock()
		return
	}

	d.ticker = d.clk.NewTicker(interval)
	d.stopCh = make(chan struct{})
	d.running = true
	ticker, stopCh := d.ticker, d.stopCh
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C():
				d.checkRelease()
			}
		}
	}()
}

// checkRelease re-evaluates the release condition on a timer tick, covering
// the case where the caller stops sending samples while speech is active.
func (d *Detector) checkRelease() {
	d.mu.Lock()

	if !d.active {
		d.mu.Unlock()
		return
	}

	now := d.clk.Now()
	if d.cfg.Enabled && now.Sub(d.lastSpeech) < time.Duration(d.cfg.SilenceDelayMs)*time.Millisecond {
		d.mu.Unlock()
		return
	}

	d.active = false
	d.speechStart = time.Time{}
	fire := d.onChange
	d.mu.Unlock()

	if fire != nil {
		fire(false)
	}
}

// Stop halts the background release check. Calling Stop when not started is
// a no-op.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.ticker.Stop()
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
}

// Destroy stops the timer and clears the observer. Subsequent calls are
// no-ops.
func (d *Detector) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.onChange = nil
	d.mu.Unlock()

	d.Stop()
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

// Ensure Detector implements ActivitySource at compile time.
var _ ActivitySource = (*Detector)(nil)
