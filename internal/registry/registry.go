// ABOUTME: Sorted, bucketed list of trackers kept current from bus events.
// ABOUTME: Also persists drag-to-reorder results in one bulk install call.
package registry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
)

// unordered is the order assumed for installs without one.
const unordered = math.MaxInt32

// Source loads trackers and stores install settings.
type Source interface {
	FetchTrackers(ctx context.Context) ([]models.Tracker, error)
	UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error
}

// Options configures a Registry.
type Options struct {
	// Development returns load and reorder errors instead of only recording them.
	Development bool
}

// Registry holds the ordinary and pillar tracker lists.
type Registry struct {
	src  Source
	bus  *events.Bus
	opts Options

	mu       sync.Mutex
	loaded   bool
	trackers []models.Tracker
	pillars  []models.Tracker
	err      error

	unsubscribe []func()
}

// New creates a registry listening for tracker events on bus.
func New(src Source, bus *events.Bus, opts Options) *Registry {
	r := &Registry{src: src, bus: bus, opts: opts}
	if bus != nil {
		r.unsubscribe = append(r.unsubscribe,
			bus.TrackerChanged.Subscribe(r.applyChanged),
			bus.TrackerRemoved.Subscribe(r.applyRemoved),
		)
	}
	return r
}

// Less orders installed trackers first, then by order, then by name.
func Less(a, b models.Tracker) bool {
	if a.IsInstalled() != b.IsInstalled() {
		return a.IsInstalled()
	}
	if ao, bo := a.SortOrder(), b.SortOrder(); ao != bo {
		return ao < bo
	}
	return a.Name < b.Name
}

// Sort orders trackers in place with Less.
func Sort(trackers []models.Tracker) {
	sort.SliceStable(trackers, func(i, j int) bool { return Less(trackers[i], trackers[j]) })
}

// Load fetches the trackers once. Later calls are no-ops until Reload.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	loaded := r.loaded
	r.mu.Unlock()
	if loaded {
		return nil
	}
	return r.Reload(ctx)
}

// Reload fetches the trackers again.
func (r *Registry) Reload(ctx context.Context) error {
	all, err := r.src.FetchTrackers(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("load trackers: %w", err))
	}

	var trackers, pillars []models.Tracker
	for _, t := range all {
		if t.System == models.TrackerPillarCodeSystem {
			pillars = append(pillars, t)
		} else {
			trackers = append(trackers, t)
		}
	}
	Sort(trackers)
	Sort(pillars)

	r.mu.Lock()
	r.trackers = trackers
	r.pillars = pillars
	r.loaded = true
	r.err = nil
	r.mu.Unlock()
	return nil
}

func (r *Registry) fail(err error) error {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	logging.Component("registry").Error().Err(err).Msg("tracker registry error")
	if r.opts.Development {
		return err
	}
	return nil
}

// Err returns the last recorded error.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Loaded reports whether trackers have been fetched.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func clone(in []models.Tracker) []models.Tracker {
	out := make([]models.Tracker, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// Trackers returns the sorted ordinary trackers.
func (r *Registry) Trackers() []models.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.trackers)
}

// PillarTrackers returns the sorted pillar trackers.
func (r *Registry) PillarTrackers() []models.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.pillars)
}

// Installed returns the installed ordinary trackers in display order.
func (r *Registry) Installed() []models.Tracker {
	var out []models.Tracker
	for _, t := range r.Trackers() {
		if t.IsInstalled() {
			out = append(out, t)
		}
	}
	return out
}

// Find looks a tracker up by id or metric id in both buckets.
func (r *Registry) Find(id string) (models.Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bucket := range [][]models.Tracker{r.trackers, r.pillars} {
		for _, t := range bucket {
			if t.ID == id || (t.MetricID != "" && t.MetricID == id) {
				return t.Clone(), true
			}
		}
	}
	return models.Tracker{}, false
}

// matches reports whether existing is the tracker that c updates.
func matches(existing, c models.Tracker) bool {
	if existing.ID == c.ID || (c.MetricID != "" && existing.ID == c.MetricID) {
		return true
	}
	return existing.MetricID != "" && existing.MetricID == c.MetricID
}

func (r *Registry) bucket(t models.Tracker) *[]models.Tracker {
	if t.System == models.TrackerPillarCodeSystem {
		return &r.pillars
	}
	return &r.trackers
}

func (r *Registry) applyChanged(changed []models.Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	touched := map[*[]models.Tracker]bool{}
	for _, c := range changed {
		b := r.bucket(c)
		found := false
		for i, existing := range *b {
			if matches(existing, c) {
				(*b)[i] = c.Clone()
				found = true
			}
		}
		if !found {
			*b = append(*b, c.Clone())
		}
		touched[b] = true
	}
	for b := range touched {
		Sort(*b)
	}
}

func (r *Registry) applyRemoved(removed models.Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bucket(removed)
	for i, existing := range *b {
		if matches(existing, removed) {
			(*b)[i] = existing.Demote()
		}
	}
	Sort(*b)
}

// SyncOrder stores ordered's positions as install orders. Only trackers
// whose order changed are written, in one bulk call. The updated trackers
// are published even when the write fails.
func (r *Registry) SyncOrder(ctx context.Context, ordered []models.Tracker) error {
	var settings []models.BulkInstalledMetricSettings
	var updated []models.Tracker
	for i := len(ordered) - 1; i >= 0; i-- {
		t := ordered[i]
		if !t.IsInstalled() {
			continue
		}
		current := unordered
		if t.Order != nil {
			current = *t.Order
		}
		if current == i {
			continue
		}
		s := models.BulkSettings(t)
		s.Order = i
		settings = append(settings, s)
		updated = append(updated, t.ApplySettings(s))
	}
	if len(settings) == 0 {
		return nil
	}

	err := r.src.UpsertTrackers(ctx, settings)
	if r.bus != nil {
		r.bus.TrackerChanged.Publish(updated)
	} else {
		r.applyChanged(updated)
	}
	if err != nil {
		return r.fail(fmt.Errorf("sync tracker order: %w", err))
	}
	return nil
}

// Close stops listening for tracker events.
func (r *Registry) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.unsubscribe = nil
}
