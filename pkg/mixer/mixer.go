// Package mixer implements the two-channel gain mixer for a tutorial playback
// session. Channel A carries the tutorial narration at a static user-set
// gain; channel B carries background music whose gain is automatically ducked
// while speech is detected on channel A, with smooth time-based attack and
// release transitions and soft output limiting.
//
// The mixer only computes gain values. Applying them to actual samples and
// driving playback is the transport layer's job.
package mixer

import (
	"log"
	"sync"
	"time"

	"github.com/tutorwatch/tutorwatch/pkg/clock"
)

const (
	// MinThresholdDb and MaxThresholdDb bound the auto-duck activation
	// threshold.
	MinThresholdDb = -60.0
	MaxThresholdDb = 0.0

	// MinAttackMs and MinReleaseMs floor the transition times. Anything
	// faster produces audible clicks.
	MinAttackMs  = 10
	MinReleaseMs = 10

	// DefaultReleaseGuardMs is how long after a duck activation a release
	// request is ignored. This is a second debounce layer on top of the
	// detector's own silence delay; without it, detector jitter restarts
	// the release animation and the music audibly flutters.
	DefaultReleaseGuardMs = 500
)

// State is a snapshot of the mixer's gain state.
type State struct {
	// ChannelAGain is the static user-set gain for the tutorial channel.
	ChannelAGain float64

	// ChannelBGain is the user-set target gain for the music channel,
	// before any ducking.
	ChannelBGain float64

	// ChannelBCurrentGain is the live, possibly-ducked gain actually
	// applied to the music channel.
	ChannelBCurrentGain float64

	AutoDuckEnabled bool

	// AutoDuckAmount is the fraction of ChannelBGain retained while
	// ducked; 0.6 ducks the music to 60% of its set gain.
	AutoDuckAmount float64

	// AutoDuckThresholdDb is the speech activation threshold in dBFS.
	AutoDuckThresholdDb float64

	// AutoDuckAttackMs is the time to reach the ducked gain after speech
	// onset; AutoDuckReleaseMs the time to restore full gain after speech
	// ends.
	AutoDuckAttackMs  int
	AutoDuckReleaseMs int

	// ReleaseGuardMs is the anti-flutter window after a duck activation
	// during which release requests are ignored.
	ReleaseGuardMs int

	IsDucking bool
}

// StateUpdate is a partial update to the mixer state. Nil fields are left
// unchanged; set fields are clamped to their valid range, never rejected.
type StateUpdate struct {
	ChannelAGain        *float64
	ChannelBGain        *float64
	AutoDuckEnabled     *bool
	AutoDuckAmount      *float64
	AutoDuckThresholdDb *float64
	AutoDuckAttackMs    *int
	AutoDuckReleaseMs   *int
	ReleaseGuardMs      *int
}

// DefaultState returns the mixer defaults: both channels at full gain,
// auto-duck enabled, music ducked to 60% at -40 dBFS speech.
func DefaultState() State {
	return State{
		ChannelAGain:        1.0,
		ChannelBGain:        1.0,
		ChannelBCurrentGain: 1.0,
		AutoDuckEnabled:     true,
		AutoDuckAmount:      0.6,
		AutoDuckThresholdDb: -40,
		AutoDuckAttackMs:    150,
		AutoDuckReleaseMs:   600,
		ReleaseGuardMs:      DefaultReleaseGuardMs,
	}
}

// gainAnim is an in-flight gain transition. The current value is derived from
// elapsed wall-clock time, so irregular caller ticks cannot distort the
// trajectory. A new animation replaces the old one; they never stack.
type gainAnim struct {
	start    float64
	end      float64
	startAt  time.Time
	duration time.Duration
}

// Mixer owns the two channel gains and the duck/release state machine. All
// methods are safe for concurrent use, though the reference design assumes a
// single logical caller timeline.
type Mixer struct {
	mu       sync.Mutex
	clk      clock.Clock
	state    State
	anim     *gainAnim
	lastDuck time.Time

	// releasePending marks a release that arrived inside the guard window.
	// It is applied as soon as the guard closes; only valid while IsDucking.
	releasePending bool

	destroyed bool
}

// New creates a Mixer with the given initial state. A nil clock selects the
// wall clock.
func New(state State, clk clock.Clock) *Mixer {
	if clk == nil {
		clk = clock.New()
	}
	m := &Mixer{clk: clk}
	m.state = clampState(state)
	m.state.ChannelBCurrentGain = m.state.ChannelBGain
	m.state.IsDucking = false
	return m
}

func clampState(s State) State {
	s.ChannelAGain = clamp01(s.ChannelAGain)
	s.ChannelBGain = clamp01(s.ChannelBGain)
	s.AutoDuckAmount = clamp01(s.AutoDuckAmount)
	s.AutoDuckThresholdDb = clampRange(s.AutoDuckThresholdDb, MinThresholdDb, MaxThresholdDb)
	s.AutoDuckAttackMs = clampMin(s.AutoDuckAttackMs, MinAttackMs)
	s.AutoDuckReleaseMs = clampMin(s.AutoDuckReleaseMs, MinReleaseMs)
	s.ReleaseGuardMs = clampMin(s.ReleaseGuardMs, 0)
	return s
}

// Update applies a partial state update. Out-of-range values are clamped,
// never rejected: gain continuity matters more than strict validation here.
// Editing ChannelBGain while not ducking re-seats the current gain
// immediately (only duck/release transitions animate). Disabling auto-duck
// while ducking triggers an immediate release animation.
func (m *Mixer) Update(u StateUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}

	now := m.clk.Now()
	m.advanceLocked(now)

	if u.ChannelAGain != nil {
		m.state.ChannelAGain = clamp01(*u.ChannelAGain)
	}
	if u.ChannelBGain != nil {
		m.state.ChannelBGain = clamp01(*u.ChannelBGain)
		if !m.state.IsDucking {
			// Direct user edit: snap, do not animate.
			m.anim = nil
			m.state.ChannelBCurrentGain = m.state.ChannelBGain
		} else {
			// Mid-duck edit: the live gain must stay within the new set
			// gain, and the ducked level follows it.
			if m.state.ChannelBCurrentGain > m.state.ChannelBGain {
				m.state.ChannelBCurrentGain = m.state.ChannelBGain
			}
			target := m.state.ChannelBGain * m.state.AutoDuckAmount
			m.startAnimLocked(now, target, m.state.AutoDuckAttackMs)
		}
	}
	if u.AutoDuckAmount != nil {
		m.state.AutoDuckAmount = clamp01(*u.AutoDuckAmount)
	}
	if u.AutoDuckThresholdDb != nil {
		m.state.AutoDuckThresholdDb = clampRange(*u.AutoDuckThresholdDb, MinThresholdDb, MaxThresholdDb)
	}
	if u.AutoDuckAttackMs != nil {
		m.state.AutoDuckAttackMs = clampMin(*u.AutoDuckAttackMs, MinAttackMs)
	}
	if u.AutoDuckReleaseMs != nil {
		m.state.AutoDuckReleaseMs = clampMin(*u.AutoDuckReleaseMs, MinReleaseMs)
	}
	if u.ReleaseGuardMs != nil {
		m.state.ReleaseGuardMs = clampMin(*u.ReleaseGuardMs, 0)
	}
	if u.AutoDuckEnabled != nil {
		wasEnabled := m.state.AutoDuckEnabled
		m.state.AutoDuckEnabled = *u.AutoDuckEnabled
		if wasEnabled && !m.state.AutoDuckEnabled && m.state.IsDucking {
			// The detector will no longer drive a release, so force one
			// now; otherwise the music stays ducked forever.
			log.Printf("[Mixer] auto-duck disabled while ducking, releasing")
			m.state.IsDucking = false
			m.releasePending = false
			m.startAnimLocked(now, m.state.ChannelBGain, m.state.AutoDuckReleaseMs)
		}
	}
}

// ProcessChannelA feeds the speech activity state of channel A into the
// duck/release state machine. It is intended to be wired to the speech
// detector's activity-change observer. A no-op when auto-duck is disabled.
func (m *Mixer) ProcessChannelA(isSpeechActive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || !m.state.AutoDuckEnabled {
		return
	}

	now := m.clk.Now()
	m.advanceLocked(now)

	switch {
	case isSpeechActive && !m.state.IsDucking:
		m.state.IsDucking = true
		m.lastDuck = now
		target := m.state.ChannelBGain * m.state.AutoDuckAmount
		m.startAnimLocked(now, target, m.state.AutoDuckAttackMs)

	case isSpeechActive:
		// Speech resumed before a deferred release was applied.
		m.releasePending = false

	case m.state.IsDucking:
		guard := time.Duration(m.state.ReleaseGuardMs) * time.Millisecond
		if now.Sub(m.lastDuck) < guard {
			// Too soon after the duck started: restarting the animation
			// here causes audible flutter. The detector reports each
			// transition exactly once, so the release cannot be dropped;
			// defer it until the guard window closes.
			m.releasePending = true
			return
		}
		m.state.IsDucking = false
		m.startAnimLocked(now, m.state.ChannelBGain, m.state.AutoDuckReleaseMs)
	}
}

// startAnimLocked replaces any in-flight animation with a new one from the
// current gain toward target over durationMs.
func (m *Mixer) startAnimLocked(now time.Time, target float64, durationMs int) {
	m.anim = &gainAnim{
		start:    m.state.ChannelBCurrentGain,
		end:      target,
		startAt:  now,
		duration: time.Duration(durationMs) * time.Millisecond,
	}
}

// advanceLocked applies a deferred release once the guard window has closed,
// then folds elapsed time into ChannelBCurrentGain. Every read and every
// state change goes through here, so a deferred release takes effect on the
// next touch after the guard expires, with the release trajectory anchored at
// the moment the guard closed.
func (m *Mixer) advanceLocked(now time.Time) {
	if m.releasePending {
		releaseAt := m.lastDuck.Add(time.Duration(m.state.ReleaseGuardMs) * time.Millisecond)
		if !now.Before(releaseAt) {
			m.advanceAnimLocked(releaseAt)
			m.releasePending = false
			m.state.IsDucking = false
			m.startAnimLocked(releaseAt, m.state.ChannelBGain, m.state.AutoDuckReleaseMs)
		}
	}
	m.advanceAnimLocked(now)
}

// advanceAnimLocked retires the animation once it completes.
func (m *Mixer) advanceAnimLocked(now time.Time) {
	a := m.anim
	if a == nil {
		return
	}

	p := float64(now.Sub(a.startAt)) / float64(a.duration)
	if p >= 1 {
		m.state.ChannelBCurrentGain = a.end
		m.anim = nil
		return
	}
	if p < 0 {
		p = 0
	}
	m.state.ChannelBCurrentGain = a.start + (a.end-a.start)*easeInOutQuad(p)
}

// easeInOutQuad is a symmetric quadratic ease: slow in, slow out.
func easeInOutQuad(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	q := -2*p + 2
	return 1 - q*q/2
}

// ChannelAGain returns the static gain for the tutorial channel.
func (m *Mixer) ChannelAGain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ChannelAGain
}

// ChannelBGain returns the effective music gain right now, ducked or not.
func (m *Mixer) ChannelBGain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked(m.clk.Now())
	return m.state.ChannelBCurrentGain
}

// IsDucking reports whether a duck animation or ducked hold is active.
func (m *Mixer) IsDucking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked(m.clk.Now())
	return m.state.IsDucking
}

// Snapshot returns a read-only copy of the mixer state at the current time.
func (m *Mixer) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked(m.clk.Now())
	return m.state
}

// Destroy cancels any in-flight gain animation and freezes the mixer.
// Subsequent calls are no-ops.
func (m *Mixer) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}
	m.advanceLocked(m.clk.Now())
	m.anim = nil
	m.destroyed = true
}
