// ABOUTME: Debounced writer for a metric's day total on a detail screen.
// ABOUTME: Failed writes roll the displayed total back to the cached records.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
)

// DefaultDebounce is the quiet period before an edit is written.
const DefaultDebounce = 800 * time.Millisecond

// DetailConfig configures a DetailWriter.
type DetailConfig struct {
	Context  models.ValuesContext
	Tracker  models.Tracker
	Day      time.Time
	Account  Account
	Strategy Strategy
	Debounce time.Duration
	// OnError is called with every failed write.
	OnError func(error)
	Now     func() time.Time
}

// DetailWriter coalesces total edits and writes only the last one.
type DetailWriter struct {
	store Store
	bus   *events.Bus
	cfg   DetailConfig

	mu        sync.Mutex
	timer     *time.Timer
	pending   *float64
	displayed float64

	writeMu sync.Mutex
}

// NewDetailWriter creates a writer for cfg.Tracker on cfg.Day.
func NewDetailWriter(store Store, bus *events.Bus, cfg DetailConfig) *DetailWriter {
	if cfg.Strategy == nil {
		cfg.Strategy = StrategyFor(cfg.Tracker)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Day = models.StartOfDay(cfg.Day.In(store.Location()))

	w := &DetailWriter{store: store, bus: bus, cfg: cfg}
	w.displayed = w.knownGood()
	return w
}

func (w *DetailWriter) knownGood() float64 {
	records := cachedRecords(w.store, w.cfg.Context, w.cfg.Tracker, w.cfg.Day)
	return units.ToPreferred(models.SumValues(records), w.cfg.Tracker)
}

// Displayed returns the total currently shown, in preferred units.
func (w *DetailWriter) Displayed() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.displayed
}

// Set shows total immediately and schedules its write.
func (w *DetailWriter) Set(total float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.displayed = total
	v := total
	w.pending = &v
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() {
		_ = w.Flush(context.Background())
	})
}

// Add shows the displayed total plus delta and schedules its write.
func (w *DetailWriter) Add(delta float64) {
	w.Set(w.Displayed() + delta)
}

// Flush writes the pending total now, if any.
func (w *DetailWriter) Flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if pending == nil {
		return nil
	}
	return w.write(ctx, *pending)
}

// Close drops any pending write.
func (w *DetailWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
}

func (w *DetailWriter) write(ctx context.Context, total float64) error {
	strategy := w.cfg.Strategy
	ups, err := w.apply(ctx, total)
	metrics.RecordWrite(strategy.Name(), err)

	if err != nil {
		logging.Component("sync").Warn().Err(err).
			Str("metric", w.cfg.Tracker.MetricKey()).
			Str("strategy", strategy.Name()).
			Msg("write failed, rolling back")
		w.mu.Lock()
		if w.pending == nil {
			w.displayed = w.knownGood()
		}
		w.mu.Unlock()
		if w.cfg.OnError != nil {
			w.cfg.OnError(err)
		}
		return err
	}

	publish(w.bus, ups)
	return nil
}

func (w *DetailWriter) apply(ctx context.Context, total float64) ([]events.ValueUpdate, error) {
	records, err := dayRecords(ctx, w.store, w.cfg.Context, w.cfg.Tracker, w.cfg.Day)
	if err != nil {
		return nil, fmt.Errorf("load day records: %w", err)
	}
	return w.cfg.Strategy.Write(ctx, w.store, WriteRequest{
		Context: w.cfg.Context,
		Tracker: w.cfg.Tracker,
		Day:     w.cfg.Day,
		Records: records,
		Total:   total,
		Now:     w.cfg.Now(),
		Account: w.cfg.Account,
	})
}
