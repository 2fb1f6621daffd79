// ABOUTME: Collects unit and target edits and writes them once on close.
// ABOUTME: Nothing is written when the settings did not change.
package sync

import (
	"context"
	"fmt"
	"math"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
)

// UnorderedOrder is the order given to trackers installed from a detail view.
const UnorderedOrder = math.MaxInt32

// SettingsSync tracks pending install settings of one tracker.
type SettingsSync struct {
	store   TrackerStore
	bus     *events.Bus
	tracker models.Tracker
	unit    string
	target  float64
}

// NewSettingsSync starts from the tracker's current settings.
func NewSettingsSync(store TrackerStore, bus *events.Bus, t models.Tracker) *SettingsSync {
	s := &SettingsSync{store: store, bus: bus, tracker: t.Clone()}
	u, _ := units.PreferredUnitType(t)
	s.unit = u.Unit
	s.target = u.Target
	if t.Target != nil {
		s.target = *t.Target
	}
	return s
}

// Unit returns the pending unit.
func (s *SettingsSync) Unit() string { return s.unit }

// Target returns the pending target.
func (s *SettingsSync) Target() float64 { return s.target }

// SetUnit selects one of the tracker's units.
func (s *SettingsSync) SetUnit(unit string) error {
	for _, u := range s.tracker.Units {
		if u.Unit == unit {
			s.unit = unit
			return nil
		}
	}
	return fmt.Errorf("unit %q: not offered by tracker %s", unit, s.tracker.Name)
}

// SetTarget sets the target, ignoring negative values.
func (s *SettingsSync) SetTarget(target float64) {
	if target >= 0 {
		s.target = target
	}
}

// SetTargetText parses a localized target, keeping the current one when
// the text is not a non-negative number.
func (s *SettingsSync) SetTargetText(text, lang string) {
	s.target = units.CoerceNonNegative(text, lang, s.target)
}

// Changed reports whether closing would write.
func (s *SettingsSync) Changed() bool {
	return s.tracker.Unit != s.unit || s.tracker.Target == nil || *s.tracker.Target != s.target
}

// Close writes changed settings and publishes the updated tracker.
func (s *SettingsSync) Close(ctx context.Context) (models.Tracker, bool, error) {
	if !s.Changed() {
		return s.tracker, false, nil
	}

	order := UnorderedOrder
	if s.tracker.IsInstalled() && s.tracker.Order != nil {
		order = *s.tracker.Order
	}
	metricID := s.tracker.MetricKey()
	saved, err := s.store.UpsertTracker(ctx, metricID, models.InstalledMetricSettings{
		Unit:   s.unit,
		Target: s.target,
		Order:  order,
	})
	if err != nil {
		return s.tracker, false, fmt.Errorf("save settings: %w", err)
	}

	settings := models.BulkSettings(saved)
	if settings.MetricID == "" {
		settings.MetricID = metricID
	}
	updated := s.tracker.ApplySettings(settings)
	s.tracker = updated.Clone()
	if s.bus != nil {
		s.bus.TrackerChanged.Publish([]models.Tracker{updated})
	}
	return updated, true, nil
}
