// ABOUTME: Value reads and writes for a session: day views, totals, quick adds and edits.
// ABOUTME: Writes go through the debounced writer, quick add and editor of the sync package.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/tracker/internal/models"
	tsync "github.com/harperreed/tracker/internal/sync"
	"github.com/harperreed/tracker/internal/units"
)

// DateLayout is the day format accepted by ParseDay.
const DateLayout = "2006-01-02"

// ErrValueNotFound is returned when no value of a day matches an id.
var ErrValueNotFound = errors.New("value not found")

// ParseDay reads "today", "yesterday", an empty string or a YYYY-MM-DD date
// in the session location and returns the start of that day.
func (s *Session) ParseDay(text string) (time.Time, error) {
	now := s.Now()
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "today":
		return models.StartOfDay(now), nil
	case "yesterday":
		return models.StartOfDay(now).AddDate(0, 0, -1), nil
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(text), s.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: want YYYY-MM-DD", text)
	}
	return day, nil
}

// Day is one tracker's values on one day.
type Day struct {
	Tracker models.Tracker
	Day     time.Time
	Values  []models.TrackerValue
	// Unit is the preferred unit; Total and Target are in it.
	Unit   models.UnitType
	Total  float64
	Target float64
}

func (s *Session) summarize(t models.Tracker, day time.Time, values []models.TrackerValue) Day {
	unit, _ := units.PreferredUnitType(t)
	target := unit.Target
	if t.Target != nil {
		target = *t.Target
	}
	return Day{
		Tracker: t,
		Day:     day,
		Values:  values,
		Unit:    unit,
		Total:   units.ToPreferred(models.SumValues(values), t),
		Target:  target,
	}
}

// Values returns every metric's values for each day of interval in vc.
func (s *Session) Values(ctx context.Context, vc models.ValuesContext, interval models.Interval) ([]map[string][]models.TrackerValue, error) {
	view := tsync.NewValuesView(s.service, s.bus, tsync.ViewConfig{
		Context:     vc,
		Interval:    &interval,
		Development: true,
		Now:         s.opts.Now,
	})
	defer view.Close()

	if err := view.Load(ctx); err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	return view.Days(), nil
}

// Day returns t's values on day.
func (s *Session) Day(ctx context.Context, t models.Tracker, day time.Time) (Day, error) {
	day = models.StartOfDay(day.In(s.opts.Location))
	days, err := s.Values(ctx, ContextFor(t), models.DayInterval(day))
	if err != nil {
		return Day{}, err
	}
	var values []models.TrackerValue
	if len(days) > 0 {
		values = days[0][t.MetricKey()]
	}
	return s.summarize(t, day, values), nil
}

// Summary returns the day of every installed tracker, pillars last.
func (s *Session) Summary(ctx context.Context, day time.Time) ([]Day, error) {
	trackers, err := s.Trackers(ctx)
	if err != nil {
		return nil, err
	}
	day = models.StartOfDay(day.In(s.opts.Location))

	byContext := map[models.ValuesContext]map[string][]models.TrackerValue{}
	var out []Day
	for _, t := range trackers {
		if !t.IsInstalled() {
			continue
		}
		vc := ContextFor(t)
		values, ok := byContext[vc]
		if !ok {
			days, err := s.Values(ctx, vc, models.DayInterval(day))
			if err != nil {
				return nil, err
			}
			values = map[string][]models.TrackerValue{}
			if len(days) > 0 {
				values = days[0]
			}
			byContext[vc] = values
		}
		out = append(out, s.summarize(t, day, values[t.MetricKey()]))
	}
	return out, nil
}

// writer warms the day's cache so the writer starts from the stored total.
func (s *Session) writer(ctx context.Context, t models.Tracker, day time.Time, onError func(error)) (*tsync.DetailWriter, error) {
	vc := ContextFor(t)
	if _, err := s.service.FetchTrackerValues(ctx, vc, models.DayInterval(day)); err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	return tsync.NewDetailWriter(s.service, s.bus, tsync.DetailConfig{
		Context: vc,
		Tracker: t,
		Day:     day,
		Account: s.opts.Account,
		OnError: onError,
		Now:     s.opts.Now,
	}), nil
}

// SetTotal makes t's total on day equal total, in preferred units, and
// returns the total now shown.
func (s *Session) SetTotal(ctx context.Context, t models.Tracker, day time.Time, total float64) (float64, error) {
	if total < 0 {
		return 0, fmt.Errorf("total must not be negative, got %g", total)
	}
	w, err := s.writer(ctx, t, day, nil)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	w.Set(total)
	if err := w.Flush(ctx); err != nil {
		return w.Displayed(), err
	}
	return w.Displayed(), nil
}

// AddToTotal changes t's total on day by delta, in preferred units. The
// total never drops below zero.
func (s *Session) AddToTotal(ctx context.Context, t models.Tracker, day time.Time, delta float64) (float64, error) {
	w, err := s.writer(ctx, t, day, nil)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	if w.Displayed()+delta < 0 {
		delta = -w.Displayed()
	}
	w.Add(delta)
	if err := w.Flush(ctx); err != nil {
		return w.Displayed(), err
	}
	return w.Displayed(), nil
}

func (s *Session) quickAdd(t models.Tracker) *tsync.QuickAdd {
	key := t.MetricKey() + "/" + t.Unit
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quickAdds[key]; ok {
		return q
	}
	q := tsync.NewQuickAdd(s.service, s.bus, tsync.QuickAddConfig{
		Context:  ContextFor(t),
		Tracker:  t,
		Account:  s.opts.Account,
		Throttle: s.opts.Throttle,
		Now:      s.opts.Now,
	})
	s.quickAdds[key] = q
	return q
}

// QuickAdd records one new value of code on day. A nil amount uses the
// unit's quick add amount.
func (s *Session) QuickAdd(ctx context.Context, t models.Tracker, day time.Time, code *models.Code, amount *float64) (models.TrackerValue, error) {
	if !t.IsInstalled() {
		return models.TrackerValue{}, fmt.Errorf("%w: %s", ErrNotInstalled, t.Name)
	}
	q := s.quickAdd(t)
	if amount != nil {
		return q.AddValue(ctx, day, code, *amount)
	}
	return q.Add(ctx, day, code)
}

// EditOptions describes one edit of a value. Nil fields are left alone.
type EditOptions struct {
	// Value is the new amount in preferred units.
	Value *float64
	Step  int
	// Category is a code or display of the tracker's ontology.
	Category string
}

// findValue resolves id, or a unique id prefix, among t's values on day.
func (s *Session) findValue(ctx context.Context, t models.Tracker, day time.Time, id string) (models.TrackerValue, error) {
	d, err := s.Day(ctx, t, day)
	if err != nil {
		return models.TrackerValue{}, err
	}
	var found []models.TrackerValue
	for _, v := range d.Values {
		if v.ID == id {
			return v, nil
		}
		if id != "" && strings.HasPrefix(v.ID, id) {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return models.TrackerValue{}, fmt.Errorf("%w: %s", ErrValueNotFound, id)
	case 1:
		return found[0], nil
	default:
		return models.TrackerValue{}, fmt.Errorf("%w: %q matches %d values", ErrAmbiguous, id, len(found))
	}
}

func (s *Session) editor(ctx context.Context, t models.Tracker, value models.TrackerValue) (*tsync.Editor, error) {
	forest, err := s.service.FetchOntology(ctx, t.Code)
	if err != nil {
		return nil, err
	}
	return tsync.NewEditor(s.service, s.bus, tsync.EditorConfig{
		Context: ContextFor(t),
		Tracker: t,
		Account: s.opts.Account,
		Value:   value,
		Forest:  forest,
		Now:     s.opts.Now,
	}), nil
}

// Edit changes the amount or category of the value id of t on day.
func (s *Session) Edit(ctx context.Context, t models.Tracker, day time.Time, id string, opts EditOptions) (tsync.SaveResult, error) {
	value, err := s.findValue(ctx, t, day, id)
	if err != nil {
		return tsync.SaveResult{}, err
	}
	e, err := s.editor(ctx, t, value)
	if err != nil {
		return tsync.SaveResult{}, err
	}

	if opts.Category != "" {
		if err := selectCategory(e, opts.Category); err != nil {
			return tsync.SaveResult{}, err
		}
	}
	if opts.Value != nil {
		if *opts.Value < 0 {
			return tsync.SaveResult{}, fmt.Errorf("value must not be negative, got %g", *opts.Value)
		}
		e.SetPreferredValue(*opts.Value)
	}
	if opts.Step != 0 {
		e.Step(opts.Step)
	}
	return e.Save(ctx)
}

// Delete removes the value id of t on day.
func (s *Session) Delete(ctx context.Context, t models.Tracker, day time.Time, id string) (models.TrackerValue, error) {
	value, err := s.findValue(ctx, t, day, id)
	if err != nil {
		return models.TrackerValue{}, err
	}
	e, err := s.editor(ctx, t, value)
	if err != nil {
		return models.TrackerValue{}, err
	}
	if _, err := e.Delete(ctx); err != nil {
		return models.TrackerValue{}, err
	}
	return value, nil
}
