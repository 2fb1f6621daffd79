// ABOUTME: Tests for close-time install settings writes.
// ABOUTME: Checks change detection, ordering and the published tracker.
package sync

import (
	"context"
	"testing"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsSyncSkipsUnchanged(t *testing.T) {
	f := newFixture(t, waterTracker())
	s := NewSettingsSync(f.service, f.bus, waterTracker())

	assert.Equal(t, "serving", s.Unit())
	assert.Equal(t, 8.0, s.Target())
	tr, wrote, err := s.Close(context.Background())
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, "m-water", tr.MetricID)
	assert.Equal(t, 0, f.backend.Calls(remotetest.OpUpsertTracker))
}

func TestSettingsSyncWritesTargetKeepingOrder(t *testing.T) {
	f := newFixture(t, waterTracker())
	var published []models.Tracker
	f.bus.TrackerChanged.Subscribe(func(ts []models.Tracker) { published = append(published, ts...) })

	s := NewSettingsSync(f.service, f.bus, waterTracker())
	s.SetTarget(-1)
	assert.Equal(t, 8.0, s.Target(), "negative targets are ignored")
	s.SetTargetText("10,5", "de")
	assert.Equal(t, 10.5, s.Target())
	s.SetTargetText("abc", "en")
	assert.Equal(t, 10.5, s.Target())

	tr, wrote, err := s.Close(context.Background())
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 10.5, *tr.Target)
	assert.Equal(t, 2, *tr.Order)
	assert.Equal(t, "Water", tr.Name)

	require.Len(t, published, 1)
	assert.Equal(t, "m-water", published[0].MetricID)
	assert.Equal(t, 10.5, *published[0].Target)

	_, wrote, err = s.Close(context.Background())
	require.NoError(t, err)
	assert.False(t, wrote, "a second close has nothing to write")
}

func TestSettingsSyncInstallsCatalogTracker(t *testing.T) {
	sleep := *models.NewTracker("sleep", "Sleep", models.ResourceProcedure,
		models.UnitType{Code: "h", Unit: "h", Default: true, Target: 8},
		models.UnitType{Code: "min", Unit: "min", Target: 480})
	f := newFixture(t, sleep)

	s := NewSettingsSync(f.service, f.bus, sleep)
	assert.True(t, s.Changed(), "a missing target counts as a change")
	require.Error(t, s.SetUnit("days"))
	require.NoError(t, s.SetUnit("min"))

	tr, wrote, err := s.Close(context.Background())
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "sleep", tr.MetricID)
	assert.Equal(t, "min", tr.Unit)
	assert.Equal(t, UnorderedOrder, *tr.Order)
	assert.Equal(t, 8.0, *tr.Target)
}
