package speech

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorwatch/tutorwatch/pkg/clock"
)

type transitionRecorder struct {
	calls []bool
}

func (r *transitionRecorder) record(active bool) {
	r.calls = append(r.calls, active)
}

func newTestDetector(cfg Config) (*Detector, *clock.Mock, *transitionRecorder) {
	mock := clock.NewMock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDetector(cfg, mock)
	rec := &transitionRecorder{}
	d.SetOnActivityChange(rec.record)
	return d, mock, rec
}

// feed delivers samples at a 100ms cadence for the given duration, starting
// with one sample at the current time.
func feed(d *Detector, mock *clock.Mock, levelDb float64, hasAudio bool, dur time.Duration) {
	d.ProcessLevel(levelDb, hasAudio)
	for elapsed := time.Duration(0); elapsed < dur; elapsed += 100 * time.Millisecond {
		mock.Advance(100 * time.Millisecond)
		d.ProcessLevel(levelDb, hasAudio)
	}
}

func TestConfigClamping(t *testing.T) {
	d, _, _ := newTestDetector(Config{
		Enabled:        true,
		ThresholdDb:    -200,
		MinDurationMs:  5,
		SilenceDelayMs: 20,
	})

	cfg := d.Config()
	assert.Equal(t, MinThresholdDb, cfg.ThresholdDb)
	assert.Equal(t, MinDurationFloorMs, cfg.MinDurationMs)
	assert.Equal(t, SilenceDelayFloorMs, cfg.SilenceDelayMs)

	th := 10.0
	min := 0
	d.UpdateConfig(ConfigUpdate{ThresholdDb: &th, MinDurationMs: &min})
	cfg = d.Config()
	assert.Equal(t, MaxThresholdDb, cfg.ThresholdDb)
	assert.Equal(t, MinDurationFloorMs, cfg.MinDurationMs)
}

func TestActivationDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThresholdDb = -40
	cfg.MinDurationMs = 200

	t.Run("short burst never fires", func(t *testing.T) {
		d, mock, rec := newTestDetector(cfg)

		feed(d, mock, -20, true, 100*time.Millisecond)
		// Level drops before the minimum duration is met.
		feed(d, mock, -60, true, 300*time.Millisecond)

		assert.False(t, d.IsActive())
		assert.Empty(t, rec.calls)
	})

	t.Run("sustained speech fires exactly once", func(t *testing.T) {
		d, mock, rec := newTestDetector(cfg)

		feed(d, mock, -20, true, 250*time.Millisecond)

		assert.True(t, d.IsActive())
		require.Len(t, rec.calls, 1)
		assert.True(t, rec.calls[0])
	})

	t.Run("level at threshold does not count", func(t *testing.T) {
		d, mock, rec := newTestDetector(cfg)

		feed(d, mock, -40, true, 500*time.Millisecond)

		assert.False(t, d.IsActive())
		assert.Empty(t, rec.calls)
	})

	t.Run("no audio resets the pending window", func(t *testing.T) {
		d, mock, rec := newTestDetector(cfg)

		feed(d, mock, -20, true, 100*time.Millisecond)
		d.ProcessLevel(-20, false) // transport reports no audio flowing
		feed(d, mock, -20, true, 100*time.Millisecond)

		assert.False(t, d.IsActive())
		assert.Empty(t, rec.calls)
	})
}

func TestReleaseDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThresholdDb = -40
	cfg.MinDurationMs = 200
	cfg.SilenceDelayMs = 500

	d, mock, rec := newTestDetector(cfg)
	feed(d, mock, -20, true, 250*time.Millisecond)
	require.True(t, d.IsActive())
	require.Len(t, rec.calls, 1)

	// Silence for less than the delay keeps the state active.
	feed(d, mock, -60, true, 400*time.Millisecond)
	assert.True(t, d.IsActive())
	require.Len(t, rec.calls, 1)

	// Crossing the delay releases exactly once.
	feed(d, mock, -60, true, 200*time.Millisecond)
	assert.False(t, d.IsActive())
	require.Len(t, rec.calls, 2)
	assert.False(t, rec.calls[1])

	// Continued silence stays silent.
	feed(d, mock, -60, true, 500*time.Millisecond)
	require.Len(t, rec.calls, 2)
}

func TestSpeechBriefDipDoesNotRelease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDurationMs = 200
	cfg.SilenceDelayMs = 500

	d, mock, rec := newTestDetector(cfg)
	feed(d, mock, -20, true, 250*time.Millisecond)
	require.True(t, d.IsActive())

	// A 300ms dip under threshold is shorter than the silence delay.
	feed(d, mock, -60, true, 300*time.Millisecond)
	feed(d, mock, -20, true, 200*time.Millisecond)

	assert.True(t, d.IsActive())
	require.Len(t, rec.calls, 1)
}

func TestDisableForcesRelease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDurationMs = 200

	d, mock, rec := newTestDetector(cfg)
	feed(d, mock, -20, true, 250*time.Millisecond)
	require.True(t, d.IsActive())

	enabled := false
	d.UpdateConfig(ConfigUpdate{Enabled: &enabled})

	assert.False(t, d.IsActive())
	require.Len(t, rec.calls, 2)
	assert.False(t, rec.calls[1])

	// While disabled, levels are ignored entirely.
	feed(d, mock, -10, true, time.Second)
	assert.False(t, d.IsActive())
	require.Len(t, rec.calls, 2)
}

func TestBackgroundReleaseTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDurationMs = 200
	cfg.SilenceDelayMs = 500

	d, mock, rec := newTestDetector(cfg)
	feed(d, mock, -20, true, 250*time.Millisecond)
	require.True(t, d.IsActive())

	// The caller stops sending samples; the background tick must still
	// release after the silence delay.
	d.Start(100 * time.Millisecond)
	defer d.Stop()

	mock.Advance(600 * time.Millisecond)

	require.Eventually(t, func() bool { return !d.IsActive() },
		time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.calls) == 2 },
		time.Second, time.Millisecond)
	assert.False(t, rec.calls[1])
}

func TestStartStopIdempotent(t *testing.T) {
	d, _, _ := newTestDetector(DefaultConfig())

	d.Stop() // not started: no-op

	d.Start(100 * time.Millisecond)
	d.Start(50 * time.Millisecond) // restart with a new interval
	d.Stop()
	d.Stop()
}

func TestDestroyIdempotent(t *testing.T) {
	d, mock, rec := newTestDetector(DefaultConfig())
	d.Start(100 * time.Millisecond)

	d.Destroy()
	d.Destroy()

	// Input after destroy is ignored and never fires the old observer.
	feed(d, mock, -10, true, time.Second)
	assert.False(t, d.IsActive())
	assert.Empty(t, rec.calls)
}

func TestLevelHelpers(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-6)

	assert.InDelta(t, -6.0206, AmplitudeToDb(0.5), 1e-3)
	assert.Equal(t, 0.0, AmplitudeToDb(1))
	assert.True(t, AmplitudeToDb(0) < -1000)
}
