package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	clock := NewRealClock()

	before := time.Now()
	actual := clock.Now()
	after := time.Now()

	assert.True(t, actual.After(before) || actual.Equal(before))
	assert.True(t, actual.Before(after) || actual.Equal(after))
}

func TestRealClock_Since(t *testing.T) {
	clock := NewRealClock()

	past := time.Now().Add(-1 * time.Second)
	assert.True(t, clock.Since(past) >= 1*time.Second)
}

func TestMockClock_Advance(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(startTime)

	assert.Equal(t, startTime, clock.Now())

	clock.Advance(1 * time.Hour)
	assert.Equal(t, startTime.Add(1*time.Hour), clock.Now())
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	newTime := time.Date(2026, 6, 15, 8, 30, 0, 0, time.UTC)
	clock.Set(newTime)

	assert.Equal(t, newTime, clock.Now())
}

func TestMockClock_Since(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(startTime)

	assert.Equal(t, 1*time.Hour, clock.Since(startTime.Add(-1*time.Hour)))
}

func TestMockClock_SleepAdvances(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(startTime)

	// A polling loop that sleeps on a mock clock must not block.
	clock.Sleep(30 * time.Minute)

	assert.Equal(t, startTime.Add(30*time.Minute), clock.Now())
}

func TestClockInterface(t *testing.T) {
	var _ Clock = &RealClock{}
	var _ Clock = &MockClock{}
}
