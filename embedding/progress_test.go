package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtIntervals(t *testing.T) {
	var buf strings.Builder
	tracker := NewProgressTracker(&buf, 100, 25)

	tracker.Start()
	tracker.Update(10)
	assert.Empty(t, buf.String(), "should not report before interval")

	tracker.Update(25)
	assert.Contains(t, buf.String(), "25/100")

	tracker.Update(50)
	assert.Contains(t, buf.String(), "50/100")
}

func TestProgressTracker_Increment(t *testing.T) {
	var buf strings.Builder
	tracker := NewProgressTracker(&buf, 10, 5)

	tracker.Start()
	for i := 0; i < 5; i++ {
		tracker.Increment(1)
	}
	assert.Contains(t, buf.String(), "5/10")
}

func TestProgressTracker_FinishReportsTotal(t *testing.T) {
	var buf strings.Builder
	tracker := NewProgressTracker(&buf, 10, 100)

	tracker.Start()
	tracker.Update(3)
	tracker.Finish()

	assert.Contains(t, buf.String(), "10/10")
	assert.Contains(t, buf.String(), "100.0%")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf strings.Builder
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Start()
	tracker.Update(50)

	assert.Contains(t, buf.String(), "10/10")
}

func TestProgressTracker_NoOpBeforeStart(t *testing.T) {
	var buf strings.Builder
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Update(5)
	tracker.Increment(5)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}
