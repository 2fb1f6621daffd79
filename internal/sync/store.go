// ABOUTME: Collaborators of the write protocol: the caching store and the bus.
// ABOUTME: Also holds helpers shared by writers, editors and views.
package sync

import (
	"context"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
)

// Store reads and writes tracker values through the value cache.
type Store interface {
	FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) (models.TrackerValues, error)
	CachedValues(vc models.ValuesContext, interval models.Interval) models.TrackerValues
	UpsertTrackerResource(ctx context.Context, vc models.ValuesContext, resource models.Resource) (models.TrackerValue, error)
	DeleteTrackerResource(ctx context.Context, vc models.ValuesContext, rt models.ResourceType, id string) (bool, error)
	Location() *time.Location
}

// TrackerStore persists install settings.
type TrackerStore interface {
	UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.Tracker, error)
}

// Account names where resources are written.
type Account struct {
	Project   string
	PatientID string
}

func (a Account) settings(t models.Tracker, value float64, createDate time.Time, id string) fhir.Settings {
	return fhir.Settings{
		Tracker:    t,
		Value:      value,
		CreateDate: createDate,
		ID:         id,
		Project:    a.Project,
		PatientID:  a.PatientID,
	}
}

// dayRecords returns the records of t on day, fetching the day if needed.
func dayRecords(ctx context.Context, store Store, vc models.ValuesContext, t models.Tracker, day time.Time) ([]models.TrackerValue, error) {
	values, err := store.FetchTrackerValues(ctx, vc, models.DayInterval(day))
	if err != nil {
		return nil, err
	}
	return values[models.DayKey(day)][t.MetricKey()], nil
}

// cachedRecords returns the cached records of t on day without fetching.
func cachedRecords(store Store, vc models.ValuesContext, t models.Tracker, day time.Time) []models.TrackerValue {
	return store.CachedValues(vc, models.DayInterval(day))[models.DayKey(day)][t.MetricKey()]
}

// createDate is now when day is today, else day itself.
func createDate(day, now time.Time) time.Time {
	if models.StartOfDay(now).Equal(models.StartOfDay(day)) {
		return now
	}
	return day
}

func publish(bus *events.Bus, updates []events.ValueUpdate) {
	if bus == nil || len(updates) == 0 {
		return
	}
	bus.ValuesChanged.Publish(updates)
}
