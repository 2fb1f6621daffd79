// ABOUTME: Throttled one-tap value creation for category quick-add buttons.
// ABOUTME: Refuses days outside the edit window and skips the recents list.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
	"golang.org/x/time/rate"
)

const (
	// DefaultThrottle is the minimum spacing of quick adds.
	DefaultThrottle = 800 * time.Millisecond
	// DefaultEditWindowDays is how far back values may still be added.
	DefaultEditWindowDays = 7
)

var (
	// ErrThrottled is returned for adds arriving within the throttle window.
	ErrThrottled = errors.New("quick add throttled")
	// ErrEditsDisabled is returned for days before the edit window.
	ErrEditsDisabled error = models.NewUserError("Values this old can no longer be edited.")
	// ErrInvalidAmount is returned for amounts that are not positive.
	ErrInvalidAmount error = models.NewUserError("Amount must be greater than zero.")
)

// QuickAddConfig configures a QuickAdd.
type QuickAddConfig struct {
	Context        models.ValuesContext
	Tracker        models.Tracker
	Account        Account
	Throttle       time.Duration
	EditWindowDays int
	Now            func() time.Time
}

// QuickAdd creates one record per accepted tap.
type QuickAdd struct {
	store   Store
	bus     *events.Bus
	cfg     QuickAddConfig
	limiter *rate.Limiter
}

// NewQuickAdd creates a quick-add handler for cfg.Tracker.
func NewQuickAdd(store Store, bus *events.Bus, cfg QuickAddConfig) *QuickAdd {
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.EditWindowDays <= 0 {
		cfg.EditWindowDays = DefaultEditWindowDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &QuickAdd{
		store:   store,
		bus:     bus,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Throttle), 1),
	}
}

// Amount is the preferred unit's quick add amount, 1 when unset.
func (q *QuickAdd) Amount() float64 {
	if u, ok := units.PreferredUnitType(q.cfg.Tracker); ok && u.QuickAddAmount != nil {
		return *u.QuickAddAmount
	}
	return 1
}

// EditsDisabled reports whether day is before the edit window.
func (q *QuickAdd) EditsDisabled(day time.Time) bool {
	now := q.cfg.Now().In(q.store.Location())
	cutoff := models.StartOfDay(now).AddDate(0, 0, -q.cfg.EditWindowDays)
	return models.StartOfDay(day.In(q.store.Location())).Before(cutoff)
}

// Add records Amount() of code on day.
func (q *QuickAdd) Add(ctx context.Context, day time.Time, code *models.Code) (models.TrackerValue, error) {
	return q.AddValue(ctx, day, code, q.Amount())
}

// AddValue records value, in preferred units, of code on day.
func (q *QuickAdd) AddValue(ctx context.Context, day time.Time, code *models.Code, value float64) (models.TrackerValue, error) {
	if value <= 0 {
		return models.TrackerValue{}, ErrInvalidAmount
	}
	if q.EditsDisabled(day) {
		return models.TrackerValue{}, ErrEditsDisabled
	}
	if !q.limiter.AllowN(q.cfg.Now(), 1) {
		return models.TrackerValue{}, ErrThrottled
	}

	t := q.cfg.Tracker
	start := models.StartOfDay(day.In(q.store.Location()))
	s := q.cfg.Account.settings(t, value, start, "")
	if err := fhir.CheckSettings(s); err != nil {
		return models.TrackerValue{}, err
	}

	v, err := q.store.UpsertTrackerResource(ctx, q.cfg.Context, fhir.ToResource(t.ResourceType, s, code))
	metrics.RecordWrite("quick_add", err)
	if err != nil {
		return models.TrackerValue{}, fmt.Errorf("quick add: %w", err)
	}

	publish(q.bus, []events.ValueUpdate{{
		Context:    q.cfg.Context,
		MetricID:   t.MetricKey(),
		Value:      v,
		SkipRecent: true,
	}})
	return v, nil
}
