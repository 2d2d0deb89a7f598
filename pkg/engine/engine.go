// Package engine ties one speech detector and one gain mixer into a playback
// session. It is the in-process surface the transport layer talks to: the
// transport feeds level observations in, polls the channel gains out before
// each volume update, and subscribes to duck events for UI indication.
//
// Engines are explicitly constructed per session; there is no shared global
// instance, so multiple concurrent sessions and deterministic tests both
// work.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tutorwatch/tutorwatch/pkg/clock"
	"github.com/tutorwatch/tutorwatch/pkg/mixer"
	"github.com/tutorwatch/tutorwatch/pkg/speech"
	"github.com/tutorwatch/tutorwatch/pkg/trace"
)

// Config holds the configuration for a session engine.
type Config struct {
	// Mixer is the initial mixer state.
	Mixer mixer.State

	// Detector is the initial detector configuration. Its threshold is
	// overridden by Mixer.AutoDuckThresholdDb so the two stay in sync.
	Detector speech.Config

	// TickInterval is the cadence of the detector's background release
	// check. Zero selects the detector default.
	TickInterval time.Duration

	// Clock is the time source; nil selects the wall clock.
	Clock clock.Clock

	// Source overrides the activity source, for tests. Nil constructs a
	// real detector from the Detector config.
	Source speech.ActivitySource

	// Bus overrides the event bus. Nil constructs one.
	Bus Bus
}

// DefaultConfig returns a Config with the reference defaults.
func DefaultConfig() Config {
	return Config{
		Mixer:        mixer.DefaultState(),
		Detector:     speech.DefaultConfig(),
		TickInterval: speech.DefaultTickInterval,
	}
}

// Engine owns the detector-to-mixer wiring for one playback session.
type Engine struct {
	id       string
	clk      clock.Clock
	detector speech.ActivitySource
	mixer    *mixer.Mixer
	bus      Bus

	tickInterval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once

	// duckSpan is the open span for the current duck cycle, if any. Guarded
	// by spanMu: the activity callback and the deferred-release watcher both
	// touch it.
	spanMu   sync.Mutex
	duckSpan oteltrace.Span
}

// NewEngine creates a session engine and wires the activity callback to the
// mixer.
func NewEngine(cfg Config) *Engine {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = speech.DefaultTickInterval
	}

	detCfg := cfg.Detector
	detCfg.ThresholdDb = cfg.Mixer.AutoDuckThresholdDb

	src := cfg.Source
	if src == nil {
		src = speech.NewDetector(detCfg, clk)
	}

	bus := cfg.Bus
	if bus == nil {
		bus = NewEventBus()
	}

	e := &Engine{
		id:           uuid.NewString(),
		clk:          clk,
		detector:     src,
		mixer:        mixer.New(cfg.Mixer, clk),
		bus:          bus,
		tickInterval: tick,
		stopCh:       make(chan struct{}),
	}
	e.detector.SetOnActivityChange(e.onActivityChange)
	return e
}

// ID returns the session ID.
func (e *Engine) ID() string {
	return e.id
}

// Bus returns the session event bus.
func (e *Engine) Bus() Bus {
	return e.bus
}

// Start launches the detector's background release check. The context bounds
// the session; Stop or context cancellation ends it.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.ctx = ctx
	e.cancel = cancel

	e.detector.Start(e.tickInterval)

	log.Printf("[Engine] session %s started, tick interval %v", e.id, e.tickInterval)
	return nil
}

// Stop halts the detector timer and closes any open duck span. Idempotent.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.detector.Stop()
	e.endDuckSpan()

	log.Printf("[Engine] session %s stopped", e.id)
	return nil
}

// FeedLevel ingests one level observation from the transport's meter.
func (e *Engine) FeedLevel(levelDb float64, hasAudio bool) {
	e.detector.ProcessLevel(levelDb, hasAudio)
}

// Gains returns the gain for the tutorial channel and the current, possibly
// ducked, gain for the music channel. The transport applies these to the
// respective playback engines before each volume update.
func (e *Engine) Gains() (channelA, channelB float64) {
	return e.mixer.ChannelAGain(), e.mixer.ChannelBGain()
}

// IsDucking reports whether the music channel is currently ducked.
func (e *Engine) IsDucking() bool {
	return e.mixer.IsDucking()
}

// IsSpeechActive reports the detector's confirmed activity state.
func (e *Engine) IsSpeechActive() bool {
	return e.detector.IsActive()
}

// MixSample applies each channel's gain to one sample and combines them
// through the output limiter. Offered for transports that mix in-process
// rather than setting per-engine volumes.
func (e *Engine) MixSample(a, b float64) float64 {
	gainA, gainB := e.Gains()
	return mixer.LimitOutput(mixer.ApplyGain(a, gainA), mixer.ApplyGain(b, gainB))
}

// MixerState returns a snapshot of the mixer state.
func (e *Engine) MixerState() mixer.State {
	return e.mixer.Snapshot()
}

// UpdateMixer applies a partial mixer update. A threshold change fans out to
// the detector, which owns the actual comparison.
func (e *Engine) UpdateMixer(u mixer.StateUpdate) {
	e.mixer.Update(u)
	if u.AutoDuckThresholdDb != nil {
		e.detector.UpdateConfig(speech.ConfigUpdate{ThresholdDb: u.AutoDuckThresholdDb})
	}
}

// UpdateDetector applies a partial detector update.
func (e *Engine) UpdateDetector(u speech.ConfigUpdate) {
	e.detector.UpdateConfig(u)
}

// Destroy tears the session down. Idempotent.
func (e *Engine) Destroy() {
	e.Stop()
	e.detector.Destroy()
	e.mixer.Destroy()
}

// onActivityChange is the detector's observer. It drives the mixer's
// duck/release state machine and publishes the resulting transitions.
func (e *Engine) onActivityChange(active bool) {
	now := e.clk.Now()

	if active {
		e.bus.Publish(Event{Type: EventSpeechStart, SessionID: e.id, Timestamp: now})
	} else {
		e.bus.Publish(Event{Type: EventSpeechEnd, SessionID: e.id, Timestamp: now})
	}

	wasDucking := e.mixer.IsDucking()
	e.mixer.ProcessChannelA(active)
	isDucking := e.mixer.IsDucking()

	switch {
	case isDucking && !wasDucking:
		e.bus.Publish(Event{Type: EventDuckStart, SessionID: e.id, Timestamp: now})
		e.beginDuckSpan()
	case !isDucking && wasDucking:
		e.bus.Publish(Event{Type: EventDuckEnd, SessionID: e.id, Timestamp: now})
		e.endDuckSpan()
	}

	if !active && isDucking {
		// The release guard deferred this release. Watch for it to land so
		// the DuckEnd event and span still close out. The ticker is created
		// here, not in the goroutine, so simulated clocks advanced right
		// after the callback still reach it.
		ticker := e.clk.NewTicker(e.tickInterval)
		go e.watchDeferredRelease(ticker)
	}
}

// watchDeferredRelease polls until a guard-deferred release is applied, then
// publishes DuckEnd. Exits early if speech resumes or the session stops.
func (e *Engine) watchDeferredRelease(ticker clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C():
			if e.detector.IsActive() {
				return
			}
			if !e.mixer.IsDucking() {
				e.bus.Publish(Event{Type: EventDuckEnd, SessionID: e.id, Timestamp: e.clk.Now()})
				e.endDuckSpan()
				return
			}
		}
	}
}

func (e *Engine) beginDuckSpan() {
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	st := e.mixer.Snapshot()
	attrs := append(trace.SessionAttrs(e.id),
		trace.DuckAttrs(st.ChannelAGain, st.ChannelBGain, st.AutoDuckAmount,
			st.AutoDuckAttackMs, st.AutoDuckReleaseMs)...)

	_, span := trace.StartSpan(ctx, "audio.duck", oteltrace.WithAttributes(attrs...))

	e.spanMu.Lock()
	e.duckSpan = span
	e.spanMu.Unlock()
}

func (e *Engine) endDuckSpan() {
	e.spanMu.Lock()
	defer e.spanMu.Unlock()

	if e.duckSpan == nil {
		return
	}
	e.duckSpan.End()
	e.duckSpan = nil
}
