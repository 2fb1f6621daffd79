// ABOUTME: Date-bucketed tracker value cache with partial range fetch coalescing.
// ABOUTME: A present day key means fetched; an absent key means unknown.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
)

// Fetcher loads the values of vc within interval from the backend.
type Fetcher func(ctx context.Context, vc models.ValuesContext, interval models.Interval) (models.TrackerValues, error)

// Values caches tracker values per context and day.
type Values struct {
	mu   sync.Mutex
	data models.ContextTrackerValues
}

// NewValues creates an empty cache.
func NewValues() *Values {
	return &Values{data: models.ContextTrackerValues{}}
}

func (c *Values) bucket(vc models.ValuesContext) models.TrackerValues {
	b, ok := c.data[vc.Key()]
	if !ok {
		b = models.TrackerValues{}
		c.data[vc.Key()] = b
	}
	return b
}

// pick copies the cached days among keys. Must hold mu.
func (c *Values) pick(vc models.ValuesContext, keys []string) models.TrackerValues {
	b := c.data[vc.Key()]
	out := models.TrackerValues{}
	for _, k := range keys {
		day, ok := b[k]
		if !ok {
			continue
		}
		copied := make(map[string][]models.TrackerValue, len(day))
		for metricID, values := range day {
			copied[metricID] = append([]models.TrackerValue(nil), values...)
		}
		out[k] = copied
	}
	return out
}

func dayKeys(days []time.Time) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = models.DayKey(d)
	}
	return keys
}

// Get returns the cached days of interval without fetching.
func (c *Values) Get(vc models.ValuesContext, interval models.Interval) models.TrackerValues {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pick(vc, dayKeys(interval.Days()))
}

// Has reports whether day has been fetched for vc.
func (c *Values) Has(vc models.ValuesContext, day time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[vc.Key()][models.DayKey(day)]
	return ok
}

// Put stores whole days, replacing any cached day with the same key.
func (c *Values) Put(vc models.ValuesContext, values models.TrackerValues) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucket(vc)
	for key, day := range values.Clone() {
		b[key] = day
	}
}

// Fetch returns the values of every day in interval, loading missing days
// with a single fetch spanning the first through last missing day.
func (c *Values) Fetch(ctx context.Context, vc models.ValuesContext, interval models.Interval, fetch Fetcher) (models.TrackerValues, error) {
	days := interval.Days()
	keys := dayKeys(days)

	c.mu.Lock()
	cached := c.data[vc.Key()]
	var missing []time.Time
	for i, k := range keys {
		if _, ok := cached[k]; !ok {
			missing = append(missing, days[i])
		}
	}
	if len(missing) == 0 {
		out := c.pick(vc, keys)
		c.mu.Unlock()
		metrics.CacheHits.WithLabelValues("values").Inc()
		return out, nil
	}
	c.mu.Unlock()
	metrics.CacheMisses.WithLabelValues("values").Inc()

	start := missing[0]
	if interval.Start.After(start) {
		start = interval.Start
	}
	end := models.EndOfDay(missing[len(missing)-1])
	if interval.End.Before(end) {
		end = interval.End
	}

	log := logging.Component("cache")
	log.Debug().
		Str("context", vc.Key()).
		Time("start", start).
		Time("end", end).
		Int("missing_days", len(missing)).
		Msg("fetching tracker values")

	fetched, err := fetch(ctx, vc, models.Interval{Start: start, End: end})
	if err != nil {
		metrics.CacheFetchErrors.Inc()
		return nil, fmt.Errorf("fetch tracker values: %w", err)
	}
	metrics.CacheFetchedDays.Observe(float64(len(missing)))

	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucket(vc)
	for _, d := range missing {
		b[models.DayKey(d)] = map[string][]models.TrackerValue{}
	}
	for day, metricValues := range fetched.Clone() {
		b[day] = metricValues
	}
	return c.pick(vc, keys), nil
}

// Upsert replaces the record with v's id in the given day and metric,
// appending it when absent. The day becomes present.
func (c *Values) Upsert(vc models.ValuesContext, dayKey, metricID string, v models.TrackerValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	upsertLocked(c.bucket(vc), dayKey, metricID, v)
}

func upsertLocked(b models.TrackerValues, dayKey, metricID string, v models.TrackerValue) {
	day, ok := b[dayKey]
	if !ok {
		day = map[string][]models.TrackerValue{}
		b[dayKey] = day
	}
	kept := make([]models.TrackerValue, 0, len(day[metricID])+1)
	for _, existing := range day[metricID] {
		if existing.ID != v.ID {
			kept = append(kept, existing)
		}
	}
	day[metricID] = append(kept, v)
}

// Remove drops the record with id from every cached day of vc.
func (c *Values) Remove(vc models.ValuesContext, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, day := range c.data[vc.Key()] {
		for metricID, values := range day {
			day[metricID] = withoutID(values, id)
		}
	}
}

func withoutID(values []models.TrackerValue, id string) []models.TrackerValue {
	kept := make([]models.TrackerValue, 0, len(values))
	for _, v := range values {
		if v.ID != id {
			kept = append(kept, v)
		}
	}
	return kept
}

// Apply merges an optimistic update into the day of v's created date.
// Dropped records are removed; others replace the record with the same id.
func (c *Values) Apply(vc models.ValuesContext, metricID string, v models.TrackerValue, drop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucket(vc)
	key := models.DayKey(v.CreatedDate)
	if drop {
		if day, ok := b[key]; ok {
			day[metricID] = withoutID(day[metricID], v.ID)
		}
		return
	}
	upsertLocked(b, key, metricID, v)
}

// Invalidate forgets every cached day of vc.
func (c *Values) Invalidate(vc models.ValuesContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, vc.Key())
}

// Reset forgets everything.
func (c *Values) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = models.ContextTrackerValues{}
}
