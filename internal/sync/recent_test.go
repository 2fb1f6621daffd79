// ABOUTME: Tests for recent value recording from bus events.
// ABOUTME: Backed by an in-memory badger store.
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecents(t *testing.T, bus *events.Bus) *RecentValues {
	t.Helper()
	store, err := recent.OpenBadger("")
	require.NoError(t, err)
	r := NewRecentValues(store, bus)
	t.Cleanup(func() {
		r.Close()
		_ = store.Close()
	})
	return r
}

func TestRecentValuesRecordsEligibleUpdates(t *testing.T) {
	bus := events.NewBus()
	r := newRecents(t, bus)
	tea := models.Code{System: juice.System, Code: "tea"}

	bus.ValuesChanged.Publish([]events.ValueUpdate{
		{MetricID: "m-water", Value: models.NewTrackerValue("a", 1, noon, juice)},
		{MetricID: "m-water", Value: models.NewTrackerValue("b", 1, noon, tea), SkipRecent: true},
		{MetricID: "m-water", Value: models.NewTrackerValue("c", 1, noon, tea), Drop: true},
		{MetricID: "m-water", Value: models.NewTrackerValue("d", 0, noon, tea)},
		{MetricID: "m-water", Value: models.NewTrackerValue("e", 3, noon)},
		{MetricID: "m-sleep", Value: models.NewTrackerValue("f", 60, noon, tea)},
	})

	water, err := r.Load("m-water", nil)
	require.NoError(t, err)
	require.Len(t, water, 1)
	assert.Equal(t, "juice", water[0].Code.Code)

	sleep, err := r.Load("m-sleep", nil)
	require.NoError(t, err)
	require.Len(t, sleep, 1)

	filtered, err := r.Load("m-water", []models.Code{tea})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestRecentValuesFromEditorSave(t *testing.T) {
	f, e := seededEditor(t)
	r := newRecents(t, f.bus)

	e.SetValue(4)
	_, err := e.Save(context.Background())
	require.NoError(t, err)

	values, err := r.Load("m-water", nil)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, juice.Code, values[0].Code.Code)
	assert.Equal(t, 4.0, values[0].Value)
}

func TestRecentValuesIgnoreQuickAdd(t *testing.T) {
	f := newFixture(t, waterTracker())
	r := newRecents(t, f.bus)

	_, err := newQuickAdd(f, newClock(noon)).Add(context.Background(), today, &juice)
	require.NoError(t, err)

	values, err := r.Load("m-water", nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRecentValuesStopAfterClose(t *testing.T) {
	bus := events.NewBus()
	r := newRecents(t, bus)
	r.Close()

	bus.ValuesChanged.Publish([]events.ValueUpdate{
		{MetricID: "m", Value: models.NewTrackerValue("a", 1, time.Now(), juice)},
	})
	values, err := r.Load("m", nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}
