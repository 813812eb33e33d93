package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediadrop/portal/internal/model"
)

func newTestTracker(notifier Notifier, sweeper reconcileTrigger) *Tracker {
	return NewTracker(notifier, syncRunner{}, sweeper, 0)
}

// clockAt gives the tracker a controllable clock that advances by step on
// every call.
func clockAt(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestTrackerHookSequence(t *testing.T) {
	notifier := &captureNotifier{}
	tracker := newTestTracker(notifier, nil)
	tracker.now = clockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)

	meta := map[string]string{"filename": "cut_v3.mov", "clientName": "Acme Media"}

	tracker.Track("u1", 1000, 0, meta, false)
	tracker.Track("u1", 1000, 500, meta, false)
	tracker.Track("u1", 1000, 1000, meta, true)
	tracker.Complete("u1")

	rec, ok := tracker.Get("u1")
	require.True(t, ok)
	assert.True(t, rec.IsComplete)
	assert.Equal(t, int64(1000), rec.Offset)
	require.NotNil(t, rec.CompletedAt)
	require.NotNil(t, rec.UploadSpeed)
	assert.InDelta(t, 500, *rec.UploadSpeed, 0.01)
	require.NotNil(t, rec.PreviousOffset)
	assert.Equal(t, int64(500), *rec.PreviousOffset)

	assert.Equal(t, 1, notifier.countKind(NotifyStarted))
	assert.Equal(t, 1, notifier.countKind(NotifyCompleted))
	assert.Equal(t, 2, notifier.countKind(NotifyProgress))
}

func TestTrackerCreatedAtCarriedForward(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = clockAt(start, time.Minute)

	tracker.Track("u1", 100, 0, nil, false)
	tracker.Track("u1", 100, 50, nil, false)
	tracker.Track("u1", 100, 80, nil, false)

	rec, ok := tracker.Get("u1")
	require.True(t, ok)
	assert.Equal(t, start, rec.CreatedAt)
	assert.True(t, rec.LastUpdated.After(start))
}

func TestTrackerNoSpeedOnRepeatedOffset(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	tracker.now = clockAt(time.Now(), time.Second)

	tracker.Track("u1", 100, 40, nil, false)
	tracker.Track("u1", 100, 40, nil, false)

	rec, _ := tracker.Get("u1")
	assert.Nil(t, rec.UploadSpeed)
}

func TestTrackerOffsetRegressionKept(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	tracker.now = clockAt(time.Now(), time.Second)

	tracker.Track("u1", 1000, 800, nil, false)
	tracker.Track("u1", 1000, 200, nil, false)

	rec, ok := tracker.Get("u1")
	require.True(t, ok)
	assert.Equal(t, int64(200), rec.Offset)
	require.NotNil(t, rec.UploadSpeed)
	assert.Negative(t, *rec.UploadSpeed)
}

func TestTrackerCompleteUnknownID(t *testing.T) {
	notifier := &captureNotifier{}
	tracker := newTestTracker(notifier, nil)

	tracker.Complete("never-seen")

	_, ok := tracker.Get("never-seen")
	assert.False(t, ok)
	assert.Empty(t, notifier.kinds())
}

func TestTrackerDuplicateComplete(t *testing.T) {
	notifier := &captureNotifier{}
	tracker := newTestTracker(notifier, nil)

	tracker.Track("u1", 100, 100, nil, true)
	tracker.Complete("u1")
	tracker.Complete("u1")

	assert.Equal(t, 1, notifier.countKind(NotifyCompleted))
}

func TestTrackerCompleteClampsOffset(t *testing.T) {
	tracker := newTestTracker(nil, nil)

	tracker.Track("u1", 1000, 750, nil, false)
	tracker.Complete("u1")

	rec, _ := tracker.Get("u1")
	assert.Equal(t, int64(1000), rec.Offset)
	assert.True(t, rec.IsComplete)
}

func TestTrackerCompletionLocation(t *testing.T) {
	notifier := &captureNotifier{}
	tracker := newTestTracker(notifier, nil)

	tracker.Track("u1", 10, 10, map[string]string{"key": "acme/Spring_Campaign/cut_v3.mov"}, true)
	tracker.Complete("u1")

	n, ok := notifier.last()
	require.True(t, ok)
	assert.Equal(t, NotifyCompleted, n.Kind)
	assert.Equal(t, "acme/Spring_Campaign/cut_v3.mov", n.Location)
}

func TestTrackerS3CompletionSchedulesSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	tracker := newTestTracker(nil, sweeper)

	tracker.Track("u1", 10, 10, map[string]string{"storage": model.StorageS3}, true)
	tracker.Complete("u1")

	assert.Equal(t, 1, sweeper.count())
}

func TestTrackerLocalCompletionSkipsSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	tracker := newTestTracker(nil, sweeper)

	tracker.Track("u1", 10, 10, nil, true)
	tracker.Complete("u1")

	assert.Equal(t, 0, sweeper.count())
}

func TestTrackerListActive(t *testing.T) {
	tracker := newTestTracker(nil, nil)

	tracker.Track("active", 100, 10, nil, false)
	tracker.Track("done", 100, 100, nil, true)
	tracker.Complete("done")

	active := tracker.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "active", active[0].ID)
	assert.Len(t, tracker.ListAll(), 2)
}

func TestTrackerEviction(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	old := time.Now().Add(-48 * time.Hour)
	tracker.now = func() time.Time { return old }

	tracker.Track("stale-done", 100, 100, nil, true)
	tracker.Complete("stale-done")
	tracker.Track("stale-active", 100, 10, nil, false)

	tracker.now = time.Now
	evicted := tracker.EvictOlderThan(24 * time.Hour)

	assert.Equal(t, 1, evicted)
	_, ok := tracker.Get("stale-done")
	assert.False(t, ok)
	// Incomplete records stay, however old.
	_, ok = tracker.Get("stale-active")
	assert.True(t, ok)
}
