// ABOUTME: Shared fixtures for the write protocol tests.
// ABOUTME: Wires a caching service over the in-memory backend on a fixed clock.
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote/remotetest"
	"github.com/harperreed/tracker/internal/tracktile"
	"github.com/stretchr/testify/require"
)

var (
	noon    = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	today   = models.StartOfDay(noon)
	account = Account{Project: "proj", PatientID: "pat"}
	juice   = models.Code{System: "http://example.com/drinks", Code: "juice", Display: "Juice"}
)

func fixedNow() time.Time { return noon }

// clock is a settable time source.
type clock struct{ now time.Time }

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func ptr[T any](v T) *T { return &v }

func waterTracker() models.Tracker {
	return *models.NewTracker("water", "Water", models.ResourceObservation, models.UnitType{
		Unit: "serving", Display: "Servings", Default: true, Target: 5,
		StepAmount: ptr(1.0), QuickAddAmount: ptr(2.0),
	}).WithInstall("m-water", models.InstalledMetricSettings{Unit: "serving", Target: 8, Order: 2})
}

func pillarTracker() models.Tracker {
	return *models.NewTracker("veg", "Vegetables", models.ResourceObservation, models.UnitType{
		Unit: "serving", Display: "Servings", Default: true, Target: 5,
	}).WithSystem(models.TrackerPillarCodeSystem, "veg")
}

type fixture struct {
	backend *remotetest.Backend
	service *tracktile.Service
	bus     *events.Bus
}

func newFixture(t *testing.T, trackers ...models.Tracker) *fixture {
	t.Helper()
	b := remotetest.New(trackers...)
	svc := tracktile.New(b, tracktile.Options{IncludePublic: true, Location: time.UTC})
	bus := events.NewBus()
	svc.Attach(bus)
	t.Cleanup(func() {
		svc.Detach()
		bus.Close()
	})
	return &fixture{backend: b, service: svc, bus: bus}
}

// seed stores a value of tr directly in the backend, bypassing the cache.
func (f *fixture) seed(t *testing.T, tr models.Tracker, value float64, at time.Time, code *models.Code) string {
	t.Helper()
	r := f.backend.Put(fhir.ToObservation(fhir.Settings{
		Tracker:    tr,
		Value:      value,
		CreateDate: at,
		Project:    account.Project,
		PatientID:  account.PatientID,
	}, code))
	return r.ID
}

// day fetches tr's records on day through the service.
func (f *fixture) day(t *testing.T, vc models.ValuesContext, tr models.Tracker, day time.Time) []models.TrackerValue {
	t.Helper()
	values, err := f.service.FetchTrackerValues(context.Background(), vc, models.DayInterval(day))
	require.NoError(t, err)
	return values[models.DayKey(day)][tr.MetricKey()]
}

// backendTotal sums tr's stored values across all backend resources.
func (f *fixture) backendTotal(t *testing.T) float64 {
	t.Helper()
	var total float64
	for _, r := range f.backend.Resources() {
		v, err := fhir.ExtractValue(r, time.UTC)
		require.NoError(t, err)
		total += v.Value
	}
	return total
}

// collect records every value update published on bus.
func collect(bus *events.Bus) *[][]events.ValueUpdate {
	var got [][]events.ValueUpdate
	bus.ValuesChanged.Subscribe(func(u []events.ValueUpdate) {
		got = append(got, u)
	})
	return &got
}
