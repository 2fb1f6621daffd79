// ABOUTME: Tests for the session over the in-memory backend.
// ABOUTME: Recents live in an in-memory badger store; the clock is fixed at noon UTC.
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/remote/remotetest"
	tsync "github.com/harperreed/tracker/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	noon    = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	today   = models.StartOfDay(noon)
	account = tsync.Account{Project: "proj", PatientID: "pat"}
	juice   = models.Code{System: "http://example.com/drinks", Code: "juice", Display: "Juice"}
	tea     = models.Code{System: "http://example.com/drinks", Code: "tea", Display: "Tea"}
)

func ptr[T any](v T) *T { return &v }

func serving() models.UnitType {
	return models.UnitType{
		Unit: "serving", Display: "Servings", Default: true, Target: 5,
		StepAmount: ptr(1.0), QuickAddAmount: ptr(2.0),
	}
}

func waterTracker() models.Tracker {
	return *models.NewTracker("water", "Water", models.ResourceObservation, serving()).
		WithInstall("m-water", models.InstalledMetricSettings{Unit: "serving", Target: 8, Order: 2})
}

func coffeeTracker() models.Tracker {
	return *models.NewTracker("coffee", "Coffee", models.ResourceObservation, serving()).
		WithInstall("m-coffee", models.InstalledMetricSettings{Unit: "serving", Target: 2, Order: 5})
}

func teaTracker() models.Tracker {
	return *models.NewTracker("tea-tracker", "Tea", models.ResourceObservation, serving(),
		models.UnitType{Unit: "cup", Display: "Cups", Target: 3})
}

func pillarTracker() models.Tracker {
	return *models.NewTracker("veg", "Vegetables", models.ResourceObservation, serving()).
		WithSystem(models.TrackerPillarCodeSystem, "veg").
		WithInstall("m-veg", models.InstalledMetricSettings{Unit: "serving", Target: 5})
}

func drinks() []models.CodedRelationship {
	return []models.CodedRelationship{{
		Code:          models.Code{System: "http://example.com/groups", Code: "drinks"},
		SpecializedBy: []models.CodedRelationship{{Code: juice}, {Code: tea}},
	}}
}

func newSession(t *testing.T, trackers ...models.Tracker) (*Session, *remotetest.Backend) {
	t.Helper()
	if len(trackers) == 0 {
		trackers = []models.Tracker{waterTracker(), coffeeTracker(), teaTracker(), pillarTracker()}
	}
	backend := remotetest.New(trackers...)
	backend.SetOntology("water", drinks())

	store, err := recent.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := New(backend, store, Options{
		Account:     account,
		Location:    time.UTC,
		Development: true,
		Language:    "de",
		Now:         func() time.Time { return noon },
	})
	t.Cleanup(s.Close)
	return s, backend
}

func TestFindResolvesReferences(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	for _, ref := range []string{"water", "m-water", "WATER", "m-wat"} {
		got, err := s.Find(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "water", got.ID, ref)
	}

	_, err := s.Find(ctx, "nope")
	assert.True(t, errors.Is(err, ErrTrackerNotFound), "got %v", err)

	_, err = s.Find(ctx, "m-")
	assert.True(t, errors.Is(err, ErrAmbiguous), "got %v", err)
}

func TestTrackersListsPillarsLast(t *testing.T) {
	s, _ := newSession(t)

	all, err := s.Trackers(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Water", all[0].Name)
	assert.Equal(t, "Coffee", all[1].Name)
	assert.Equal(t, "Tea", all[2].Name)
	assert.Equal(t, "Vegetables", all[3].Name)

	installed, err := s.Installed(context.Background())
	require.NoError(t, err)
	assert.Len(t, installed, 2)
}

func TestInstallWritesSettings(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()

	got, changed, err := s.Install(ctx, "Tea", InstallOptions{Unit: "cup", TargetText: "2,5"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, got.IsInstalled())
	assert.Equal(t, "cup", got.Unit)
	require.NotNil(t, got.Target)
	assert.Equal(t, 2.5, *got.Target)
	require.NotNil(t, got.Order)
	assert.Equal(t, tsync.UnorderedOrder, *got.Order)

	installed, err := s.Installed(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 3)
	assert.Equal(t, "Tea", installed[2].Name)
	assert.Equal(t, 1, backend.Calls(remotetest.OpUpsertTracker))

	_, changed, err = s.Install(ctx, "Tea", InstallOptions{Target: ptr(2.5)})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, backend.Calls(remotetest.OpUpsertTracker))

	_, _, err = s.Install(ctx, "Tea", InstallOptions{Unit: "gallon"})
	assert.Error(t, err)
}

func TestUninstallDemotes(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	got, err := s.Uninstall(ctx, "Coffee")
	require.NoError(t, err)
	assert.False(t, got.IsInstalled())

	installed, err := s.Installed(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "Water", installed[0].Name)

	_, err = s.Uninstall(ctx, "Tea")
	assert.True(t, errors.Is(err, ErrNotInstalled), "got %v", err)
}

func TestReorderStoresPositions(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()

	got, err := s.Reorder(ctx, []string{"Coffee"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Coffee", got[0].Name)
	assert.Equal(t, "Water", got[1].Name)
	assert.Equal(t, 1, backend.Calls(remotetest.OpUpsertTrackers))

	for _, tr := range backend.Trackers() {
		switch tr.ID {
		case "coffee":
			assert.Equal(t, 0, *tr.Order)
		case "water":
			assert.Equal(t, 1, *tr.Order)
		}
	}

	_, err = s.Reorder(ctx, []string{"Tea"})
	assert.True(t, errors.Is(err, ErrNotInstalled), "got %v", err)
}

func TestParseDay(t *testing.T) {
	s, _ := newSession(t)

	got, err := s.ParseDay("")
	require.NoError(t, err)
	assert.Equal(t, today, got)

	got, err = s.ParseDay("yesterday")
	require.NoError(t, err)
	assert.Equal(t, today.AddDate(0, 0, -1), got)

	got, err = s.ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = s.ParseDay("last week")
	assert.Error(t, err)
}

func TestSetAndAddTotals(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	water := waterTracker()

	shown, err := s.SetTotal(ctx, water, today, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, shown)

	shown, err = s.AddToTotal(ctx, water, today, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, shown)
	require.Len(t, backend.Resources(), 1)

	day, err := s.Day(ctx, water, today)
	require.NoError(t, err)
	assert.Equal(t, 5.0, day.Total)
	assert.Equal(t, 8.0, day.Target)
	assert.Equal(t, "serving", day.Unit.Unit)

	shown, err = s.AddToTotal(ctx, water, today, -10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, shown)

	_, err = s.SetTotal(ctx, water, today, -1)
	assert.Error(t, err)
}

func TestPillarTotalsUseSingleRecord(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	veg := pillarTracker()

	_, err := s.SetTotal(ctx, veg, today, 2)
	require.NoError(t, err)
	_, err = s.SetTotal(ctx, veg, today, 4)
	require.NoError(t, err)

	resources := backend.Resources()
	require.Len(t, resources, 1)
	assert.Equal(t, 4.0, resources[0].ValueQuantity.Value)
	assert.Equal(t, models.TrackerPillarCodeSystem, resources[0].Code.Coding[0].System)
}

func TestQuickAdd(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	water := waterTracker()

	v, err := s.QuickAdd(ctx, water, today, &tea, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Value)

	_, err = s.QuickAdd(ctx, water, today, &tea, nil)
	assert.True(t, errors.Is(err, tsync.ErrThrottled), "got %v", err)

	coffee := coffeeTracker()
	_, err = s.QuickAdd(ctx, coffee, today.AddDate(0, 0, -30), nil, ptr(1.0))
	assert.True(t, errors.Is(err, tsync.ErrEditsDisabled), "got %v", err)

	_, err = s.QuickAdd(ctx, teaTracker(), today, nil, nil)
	assert.True(t, errors.Is(err, ErrNotInstalled), "got %v", err)
	assert.Len(t, backend.Resources(), 1)

	recents, err := s.Recent(ctx, water)
	require.NoError(t, err)
	assert.Empty(t, recents, "quick adds skip the recent list")
}

func seed(backend *remotetest.Backend, tr models.Tracker, value float64, code *models.Code) string {
	return backend.Put(fhir.ToObservation(fhir.Settings{
		Tracker:    tr,
		Value:      value,
		CreateDate: noon,
		Project:    account.Project,
		PatientID:  account.PatientID,
	}, code)).ID
}

func TestEditChangesCategoryAndRecordsRecent(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	water := waterTracker()
	id := seed(backend, water, 2, &juice)

	res, err := s.Edit(ctx, water, today, id, EditOptions{Category: "tea", Step: 1})
	require.NoError(t, err)
	assert.Equal(t, tsync.Saved, res.Outcome)

	r, ok := backend.Resource(id)
	require.True(t, ok)
	assert.Equal(t, 3.0, r.ValueQuantity.Value)
	assert.Equal(t, tea, *r.Code.First())

	recents, err := s.Recent(ctx, water)
	require.NoError(t, err)
	require.Len(t, recents, 1)
	assert.Equal(t, "tea", recents[0].Code.Code)

	res, err = s.Edit(ctx, water, today, id, EditOptions{Category: "Tea"})
	require.NoError(t, err)
	assert.Equal(t, tsync.Unchanged, res.Outcome)

	_, err = s.Edit(ctx, water, today, id, EditOptions{Category: "soda"})
	assert.True(t, errors.Is(err, ErrCategoryNotFound), "got %v", err)

	_, err = s.Edit(ctx, water, today, "missing", EditOptions{Value: ptr(1.0)})
	assert.True(t, errors.Is(err, ErrValueNotFound), "got %v", err)
}

func TestDeleteValue(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	water := waterTracker()
	id := seed(backend, water, 2, nil)

	removed, err := s.Delete(ctx, water, today, id[:1])
	require.NoError(t, err)
	assert.Equal(t, id, removed.ID)
	assert.Empty(t, backend.Resources())

	day, err := s.Day(ctx, water, today)
	require.NoError(t, err)
	assert.Empty(t, day.Values)

	backend.RefuseDeletes(true)
	id = seed(backend, water, 1, nil)
	require.NoError(t, s.Refresh(ctx))
	_, err = s.Delete(ctx, water, today, id)
	assert.True(t, errors.Is(err, tsync.ErrDeleteFailed), "got %v", err)
}

func TestDeleteZeroValue(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	water := waterTracker()

	_, err := s.QuickAdd(ctx, water, today, nil, ptr(0.0))
	assert.True(t, errors.Is(err, tsync.ErrInvalidAmount), "got %v", err)
	assert.Empty(t, backend.Resources())

	id := seed(backend, water, 0, nil)
	removed, err := s.Delete(ctx, water, today, id)
	require.NoError(t, err)
	assert.Equal(t, id, removed.ID)
	_, ok := backend.Resource(id)
	assert.False(t, ok, "zero-valued record is deleted")
}

func TestCategories(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	codes, err := s.Categories(ctx, waterTracker())
	require.NoError(t, err)
	require.Len(t, codes, 2)

	code, err := s.Category(ctx, waterTracker(), "JUICE")
	require.NoError(t, err)
	assert.Equal(t, juice, *code)

	codes, err = s.Categories(ctx, coffeeTracker())
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "coffee", codes[0].Code)
}

func TestSummaryCoversInstalledTrackers(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()
	seed(backend, waterTracker(), 3, nil)
	seed(backend, pillarTracker(), 1, nil)

	summary, err := s.Summary(ctx, noon)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "Water", summary[0].Tracker.Name)
	assert.Equal(t, 3.0, summary[0].Total)
	assert.Equal(t, 0.0, summary[1].Total)
	assert.Equal(t, "Vegetables", summary[2].Tracker.Name)
	assert.Equal(t, 1.0, summary[2].Total)
}

func TestRefreshRefetches(t *testing.T) {
	s, backend := newSession(t)
	ctx := context.Background()

	_, err := s.Trackers(ctx)
	require.NoError(t, err)
	_, err = s.Day(ctx, waterTracker(), today)
	require.NoError(t, err)
	_, err = s.Day(ctx, waterTracker(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Calls(remotetest.OpFetchTrackerValues))

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 2, backend.Calls(remotetest.OpFetchTrackers))

	_, err = s.Day(ctx, waterTracker(), today)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(remotetest.OpFetchTrackerValues))
}
