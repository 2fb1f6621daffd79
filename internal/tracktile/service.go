// ABOUTME: Caching service layered over a tracker Backend.
// ABOUTME: Owns the tracker list, the value cache and the ontology cache.
package tracktile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/cache"
	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

// Options configures a Service.
type Options struct {
	// IncludePublic also lists public catalog trackers.
	IncludePublic bool
	// Location decides day boundaries. Defaults to time.Local.
	Location *time.Location
}

// Service serves trackers, values and ontologies from cache where it can.
type Service struct {
	backend remote.Backend
	opts    Options

	mu            sync.Mutex
	trackers      []models.Tracker
	fetched       bool
	includePublic bool

	values     *cache.Values
	ontologies *cache.Ontologies

	unsubscribe func()
}

// New creates a service over backend.
func New(backend remote.Backend, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		backend:    backend,
		opts:       opts,
		values:     cache.NewValues(),
		ontologies: cache.NewOntologies(),
	}
}

// Location returns the time zone used for day keys.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// Attach drops cached values whenever a refresh is published on bus.
func (s *Service) Attach(bus *events.Bus) {
	s.Detach()
	s.unsubscribe = bus.Refresh.Subscribe(func(r events.Refresh) {
		if len(r.Contexts) == 0 {
			s.values.Reset()
			return
		}
		for _, vc := range r.Contexts {
			s.values.Invalidate(vc)
		}
	})
}

// Detach stops listening for refreshes.
func (s *Service) Detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Reset forgets all cached state.
func (s *Service) Reset() {
	s.mu.Lock()
	s.trackers = nil
	s.fetched = false
	s.mu.Unlock()
	s.values.Reset()
	s.ontologies.Reset()
}

// FetchTrackers returns the tracker list, fetching it on first use or when
// the public catalog setting changed since the last fetch.
func (s *Service) FetchTrackers(ctx context.Context) ([]models.Tracker, error) {
	s.mu.Lock()
	if s.fetched && s.includePublic == s.opts.IncludePublic {
		out := cloneTrackers(s.trackers)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	trackers, err := s.backend.FetchTrackers(ctx, s.opts.IncludePublic)
	if err != nil {
		return nil, fmt.Errorf("fetch trackers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers = cloneTrackers(trackers)
	s.fetched = true
	s.includePublic = s.opts.IncludePublic
	return cloneTrackers(trackers), nil
}

// SetIncludePublic changes the catalog setting; the next fetch reloads.
func (s *Service) SetIncludePublic(include bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.IncludePublic = include
}

func cloneTrackers(in []models.Tracker) []models.Tracker {
	if in == nil {
		return nil
	}
	out := make([]models.Tracker, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// updateSettingsLocked merges settings into the cached tracker addressed by
// the settings' metric id or by requested, the id the write was issued for.
// Must hold mu.
func (s *Service) updateSettingsLocked(settings models.BulkInstalledMetricSettings, requested string) (models.Tracker, bool) {
	for i, t := range s.trackers {
		if t.MetricKey() != settings.MetricID && t.MetricKey() != requested {
			continue
		}
		merged := t.ApplySettings(settings)
		s.trackers = append(s.trackers[:i:i], s.trackers[i+1:]...)
		s.trackers = append(s.trackers, merged)
		return merged.Clone(), true
	}
	return models.Tracker{}, false
}

// UpsertTracker installs or updates a tracker and returns the merged tracker.
// When the tracker is not cached the result carries only the install fields.
func (s *Service) UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.Tracker, error) {
	saved, err := s.backend.UpsertTracker(ctx, metricID, settings)
	if err != nil {
		return models.Tracker{}, fmt.Errorf("upsert tracker %s: %w", metricID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if merged, ok := s.updateSettingsLocked(saved, metricID); ok {
		return merged, nil
	}
	return models.Tracker{ID: saved.MetricID}.ApplySettings(saved), nil
}

// UpsertTrackers writes many installs in one call and applies them to the
// cached list in one critical section.
func (s *Service) UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error {
	if err := s.backend.UpsertTrackers(ctx, settings); err != nil {
		return fmt.Errorf("upsert trackers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range settings {
		s.updateSettingsLocked(st, st.MetricID)
	}
	return nil
}

// UninstallTracker removes an install and demotes the cached tracker.
func (s *Service) UninstallTracker(ctx context.Context, metricID string) error {
	if err := s.backend.UninstallTracker(ctx, metricID); err != nil {
		return fmt.Errorf("uninstall tracker %s: %w", metricID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.trackers {
		if t.MetricID == metricID {
			s.trackers[i] = t.Demote()
		}
	}
	return nil
}

// FetchTrackerValues returns the values of every day in interval, fetching
// only the days not cached yet.
func (s *Service) FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) (models.TrackerValues, error) {
	return s.values.Fetch(ctx, vc, interval, s.fetchValues)
}

func (s *Service) fetchValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) (models.TrackerValues, error) {
	resources, err := s.backend.FetchTrackerValues(ctx, vc, interval)
	if err != nil {
		return nil, err
	}
	return fhir.GroupValues(resources, s.opts.Location)
}

// CachedValues returns the cached days of interval without fetching.
func (s *Service) CachedValues(vc models.ValuesContext, interval models.Interval) models.TrackerValues {
	return s.values.Get(vc, interval)
}

// UpsertTrackerResource persists resource and records the saved value in
// the cache under the day and metric of the submitted resource.
func (s *Service) UpsertTrackerResource(ctx context.Context, vc models.ValuesContext, resource models.Resource) (models.TrackerValue, error) {
	submitted, err := fhir.ExtractValue(resource, s.opts.Location)
	if err != nil {
		return models.TrackerValue{}, fmt.Errorf("read resource: %w", err)
	}

	saved, err := s.backend.UpsertTrackerResource(ctx, resource)
	if err != nil {
		return models.TrackerValue{}, fmt.Errorf("upsert tracker resource: %w", err)
	}

	value := submitted
	if saved.ID != "" {
		value.ID = saved.ID
	}
	if persisted, err := fhir.ExtractValue(saved, s.opts.Location); err == nil {
		value.CreatedDate = persisted.CreatedDate
		value.Value = persisted.Value
	} else {
		logging.Component("tracktile").Debug().Err(err).Str("id", saved.ID).Msg("using submitted value for cache")
	}

	if coding, ok := fhir.MetricCoding(resource.Code.Coding); ok {
		key := models.DayKey(submitted.CreatedDate)
		s.values.Upsert(vc, key, coding.Code, value)
	}
	return value, nil
}

// DeleteTrackerResource deletes a value resource. The record leaves the
// cache only when the backend reports it was removed.
func (s *Service) DeleteTrackerResource(ctx context.Context, vc models.ValuesContext, rt models.ResourceType, id string) (bool, error) {
	removed, err := s.backend.DeleteTrackerResource(ctx, rt, id)
	if err != nil {
		return false, fmt.Errorf("delete tracker resource %s: %w", id, err)
	}
	if removed {
		s.values.Remove(vc, id)
	}
	return removed, nil
}

// FetchOntology returns the ontology forest below code.
func (s *Service) FetchOntology(ctx context.Context, code string) ([]models.CodedRelationship, error) {
	forest, err := s.ontologies.Fetch(ctx, code, s.backend.FetchOntology)
	if err != nil {
		return nil, fmt.Errorf("fetch ontology %s: %w", code, err)
	}
	return forest, nil
}
