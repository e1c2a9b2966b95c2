package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer("bench")
	assert.NotNil(t, timer)
	assert.Equal(t, "bench", timer.name)
	assert.True(t, timer.enabled)
}

func TestTimerPhase(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	pt := timer.Start("episodes")
	mockClock.Advance(120 * time.Millisecond)
	duration := pt.Stop()

	assert.Equal(t, 120*time.Millisecond, duration)
	assert.Equal(t, 120*time.Millisecond, timer.GetDuration("episodes"))
}

func TestTimerStopIdempotent(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	pt := timer.Start("persist")
	mockClock.Advance(10 * time.Millisecond)
	first := pt.Stop()

	// A second stop after more time passes keeps the first duration.
	mockClock.Advance(50 * time.Millisecond)
	second := pt.Stop()

	assert.Equal(t, first, second)
}

func TestTimerDisabled(t *testing.T) {
	timer := NewTimer("bench", WithEnabled(false))

	pt := timer.Start("episodes")
	assert.NotNil(t, pt)
	assert.Equal(t, time.Duration(0), pt.Stop())
	assert.Equal(t, "", timer.Summary())
}

func TestTimerSummary(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	episodes := timer.Start("episodes")
	mockClock.Advance(200 * time.Millisecond)
	episodes.Stop()

	persist := timer.Start("persist")
	mockClock.Advance(30 * time.Millisecond)
	persist.Stop()

	summary := timer.Summary()
	assert.Contains(t, summary, "bench timing:")
	assert.Contains(t, summary, "episodes=200ms")
	assert.Contains(t, summary, "persist=30ms")
	assert.Contains(t, summary, "total=230ms")
}

func TestTimerLogsPhaseStop(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDefaultLogger(LevelDebug, &buf)
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock), WithLogger(logger))

	pt := timer.Start("episodes")
	mockClock.Advance(5 * time.Millisecond)
	pt.Stop()

	assert.Contains(t, buf.String(), "phase episodes took 5ms")
}

func TestTimerRestartPhase(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	first := timer.Start("episodes")
	mockClock.Advance(10 * time.Millisecond)
	first.Stop()

	// Restarting replaces the recorded duration without duplicating the
	// phase in the summary.
	second := timer.Start("episodes")
	mockClock.Advance(40 * time.Millisecond)
	second.Stop()

	assert.Equal(t, 40*time.Millisecond, timer.GetDuration("episodes"))
}

func TestTimerStopUnknownPhase(t *testing.T) {
	timer := NewTimer("bench")
	assert.Equal(t, time.Duration(0), timer.StopPhase("missing"))
}

func TestTimerReset(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	pt := timer.Start("episodes")
	mockClock.Advance(10 * time.Millisecond)
	pt.Stop()

	timer.Reset()

	assert.Equal(t, time.Duration(0), timer.GetDuration("episodes"))
	assert.Equal(t, time.Duration(0), timer.TotalDuration())
}

func TestTimerTotalDuration(t *testing.T) {
	mockClock := NewMockClock(time.Now())
	timer := NewTimer("bench", WithClock(mockClock))

	mockClock.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, timer.TotalDuration())
}
