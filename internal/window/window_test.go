package window

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTracker_InitializeFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.yaml")
	tracker := NewTracker(path, date(2023, 1, 1))

	require.NoError(t, tracker.Initialize(date(2023, 1, 15)))

	w, err := tracker.Load()
	require.NoError(t, err)
	assert.Equal(t, date(2023, 1, 1), w.Start)
	assert.Equal(t, date(2023, 1, 14), w.End)
	assert.True(t, w.LastRun.IsZero())
}

func TestTracker_InitializeIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.yaml")
	tracker := NewTracker(path, date(2023, 1, 1))

	require.NoError(t, tracker.Initialize(date(2023, 1, 15)))

	saved := Window{
		Start:   date(2023, 2, 1),
		End:     date(2023, 2, 9),
		LastRun: date(2023, 2, 10),
	}
	require.NoError(t, tracker.Save(saved))

	// A second initialize must not touch the existing record
	require.NoError(t, tracker.Initialize(date(2023, 3, 1)))

	w, err := tracker.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, w)
}

func TestTracker_InitializeDoesNotOverwriteCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.yaml")
	require.NoError(t, os.WriteFile(path, []byte("start: [not a date\n"), 0644))

	tracker := NewTracker(path, date(2023, 1, 1))
	err := tracker.Initialize(date(2023, 1, 15))
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "start: [not a date\n", string(data))
}

func TestTracker_LoadBeforeInitialize(t *testing.T) {
	tracker := NewTracker(filepath.Join(t.TempDir(), "window.yaml"), time.Time{})

	_, err := tracker.Load()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTracker_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(filepath.Join(dir, "window.yaml"), time.Time{})

	require.NoError(t, tracker.Save(Window{
		Start: date(2023, 5, 1),
		End:   date(2023, 5, 2),
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "window.yaml", entries[0].Name())
}

func TestWindow_IsDue(t *testing.T) {
	today := date(2023, 6, 10)

	assert.True(t, Window{}.IsDue(today), "never ran")
	assert.True(t, Window{LastRun: date(2023, 6, 9)}.IsDue(today))
	assert.False(t, Window{LastRun: today}.IsDue(today))
}

func TestAdvance_NarrowsToToday(t *testing.T) {
	w := Window{
		Start:   date(2023, 1, 1),
		End:     date(2023, 1, 14),
		LastRun: date(2023, 1, 10),
	}

	next := Advance(w, date(2023, 1, 15))
	assert.Equal(t, date(2023, 1, 15), next.Start)
	assert.Equal(t, date(2023, 1, 15), next.LastRun)
	assert.Equal(t, w.End, next.End)
}

func TestAdvance_MonotonicLastRun(t *testing.T) {
	w := Window{Start: date(2023, 1, 1), End: date(2023, 1, 14)}

	days := []time.Time{
		date(2023, 1, 15),
		date(2023, 1, 16),
		date(2023, 1, 18), // a skipped day does not break advancement
	}
	for _, today := range days {
		w = Advance(w, today)
		assert.Equal(t, today, w.LastRun)
		assert.Equal(t, today, w.Start)
	}
}

func TestWindow_RoundTripNeverSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.yaml")
	tracker := NewTracker(path, time.Time{})

	require.NoError(t, tracker.Save(Window{
		Start: date(2023, 1, 1),
		End:   date(2023, 1, 2),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "last_run: never")

	w, err := tracker.Load()
	require.NoError(t, err)
	assert.True(t, w.LastRun.IsZero())
}
