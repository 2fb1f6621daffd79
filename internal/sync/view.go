// ABOUTME: Per-context view of tracker values over a date range.
// ABOUTME: Applies matching value events and rolls over to a new day.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
)

// DefaultPollInterval is how often a today view checks for a new day.
const DefaultPollInterval = time.Minute

// ViewConfig configures a ValuesView.
type ViewConfig struct {
	Context models.ValuesContext
	// Interval fixes the range. Nil follows today.
	Interval *models.Interval
	// Development returns fetch errors from Load instead of only recording them.
	Development  bool
	PollInterval time.Duration
	Now          func() time.Time
}

// ValuesView holds the values of one context for display.
type ValuesView struct {
	store Store
	cfg   ViewConfig

	mu     sync.Mutex
	values models.TrackerValues
	err    error
	today  time.Time

	unsubscribe []func()
	stop        chan struct{} // guarded by mu
	done        chan struct{} // guarded by mu
	closed      bool          // guarded by mu
	closeOnce   sync.Once
}

// NewValuesView creates a view and subscribes it to bus.
func NewValuesView(store Store, bus *events.Bus, cfg ViewConfig) *ValuesView {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	v := &ValuesView{store: store, cfg: cfg}
	v.today = models.StartOfDay(v.now())
	if bus != nil {
		v.unsubscribe = append(v.unsubscribe,
			bus.ValuesChanged.Subscribe(v.apply),
			bus.Refresh.Subscribe(func(r events.Refresh) {
				if r.Includes(cfg.Context) {
					v.clear()
				}
			}),
		)
	}
	return v
}

func (v *ValuesView) now() time.Time {
	return v.cfg.Now().In(v.store.Location())
}

// Interval returns the displayed range.
func (v *ValuesView) Interval() models.Interval {
	if v.cfg.Interval != nil {
		return *v.cfg.Interval
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return models.DayInterval(v.today)
}

// Load fetches the range. Errors are recorded, and returned only in
// development mode.
func (v *ValuesView) Load(ctx context.Context) error {
	values, err := v.store.FetchTrackerValues(ctx, v.cfg.Context, v.Interval())

	v.mu.Lock()
	if err != nil {
		v.err = err
	} else {
		v.values = values
		v.err = nil
	}
	v.mu.Unlock()

	if err != nil {
		logging.Component("view").Error().Err(err).Str("context", v.cfg.Context.Key()).Msg("fetch tracker values failed")
		if v.cfg.Development {
			return err
		}
	}
	return nil
}

// Err returns the last fetch error.
func (v *ValuesView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Loaded reports whether values or an error are present.
func (v *ValuesView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.values != nil || v.err != nil
}

// Days returns one metric map per day of the range, empty when unknown.
func (v *ValuesView) Days() []map[string][]models.TrackerValue {
	interval := v.Interval()
	v.mu.Lock()
	defer v.mu.Unlock()
	days := interval.Days()
	out := make([]map[string][]models.TrackerValue, len(days))
	for i, d := range days {
		day := map[string][]models.TrackerValue{}
		for metricID, values := range v.values[models.DayKey(d)] {
			day[metricID] = append([]models.TrackerValue(nil), values...)
		}
		out[i] = day
	}
	return out
}

// Total returns metricID's stored-unit sum on day.
func (v *ValuesView) Total(day time.Time, metricID string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return models.SumValues(v.values[models.DayKey(day)][metricID])
}

func (v *ValuesView) apply(updates []events.ValueUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range updates {
		if u.Context != v.cfg.Context {
			continue
		}
		if v.values == nil {
			v.values = models.TrackerValues{}
		}
		created := u.Value.CreatedDate
		if created.IsZero() {
			created = v.today
		}
		key := models.DayKey(created.In(v.store.Location()))
		day := v.values[key]
		if day == nil {
			day = map[string][]models.TrackerValue{}
			v.values[key] = day
		}
		var kept []models.TrackerValue
		for _, existing := range day[u.MetricID] {
			if existing.ID != u.Value.ID {
				kept = append(kept, existing)
			}
		}
		if !u.Drop {
			kept = append(kept, u.Value)
		}
		day[u.MetricID] = kept
	}
}

func (v *ValuesView) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values = nil
	v.err = nil
}

// Start polls for a new day when the view follows today, reloading after
// the rollover. It stops on Close or when ctx is done.
func (v *ValuesView) Start(ctx context.Context) {
	v.mu.Lock()
	if v.cfg.Interval != nil || v.stop != nil || v.closed {
		v.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	v.stop, v.done = stop, done
	v.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(v.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if v.rollover() {
					_ = v.Load(ctx)
				}
			}
		}
	}()
}

// rollover moves the view to the current day, reporting whether it moved.
func (v *ValuesView) rollover() bool {
	today := models.StartOfDay(v.now())
	v.mu.Lock()
	defer v.mu.Unlock()
	if today.Equal(v.today) {
		return false
	}
	v.today = today
	v.values = nil
	v.err = nil
	return true
}

// Close unsubscribes the view and stops its poller.
func (v *ValuesView) Close() {
	v.closeOnce.Do(func() {
		for _, unsub := range v.unsubscribe {
			unsub()
		}
		v.mu.Lock()
		v.closed = true
		stop, done := v.stop, v.done
		v.mu.Unlock()
		// The poller takes mu when it reloads, so wait outside the lock.
		if stop != nil {
			close(stop)
			<-done
		}
	})
}
