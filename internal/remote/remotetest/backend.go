// ABOUTME: In-memory Backend for tests, with per-operation failure injection.
// ABOUTME: Counts calls so tests can assert on remote traffic.
package remotetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

// Operation names accepted by Fail and Calls.
const (
	OpFetchTrackers         = "FetchTrackers"
	OpUpsertTracker         = "UpsertTracker"
	OpUpsertTrackers        = "UpsertTrackers"
	OpUninstallTracker      = "UninstallTracker"
	OpFetchTrackerValues    = "FetchTrackerValues"
	OpUpsertTrackerResource = "UpsertTrackerResource"
	OpDeleteTrackerResource = "DeleteTrackerResource"
	OpFetchOntology         = "FetchOntology"
)

// Backend keeps trackers, resources and ontologies in memory.
type Backend struct {
	mu         sync.Mutex
	trackers   []models.Tracker
	resources  map[string]models.Resource
	order      []string
	ontologies map[string][]models.CodedRelationship
	calls      map[string]int
	failures   map[string]error
	noDelete   bool
	nextID     int
	intervals  []models.Interval
}

var _ remote.Backend = (*Backend)(nil)

// New creates a backend holding trackers.
func New(trackers ...models.Tracker) *Backend {
	b := &Backend{
		resources:  map[string]models.Resource{},
		ontologies: map[string][]models.CodedRelationship{},
		calls:      map[string]int{},
		failures:   map[string]error{},
	}
	for _, t := range trackers {
		b.trackers = append(b.trackers, t.Clone())
	}
	return b
}

// Fail makes op return err until cleared with a nil err.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// RefuseDeletes makes deletes report that nothing was removed.
func (b *Backend) RefuseDeletes(refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noDelete = refuse
}

// Calls returns how often op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Intervals returns every interval values were fetched for.
func (b *Backend) Intervals() []models.Interval {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Interval(nil), b.intervals...)
}

// SetOntology stores the forest served for code.
func (b *Backend) SetOntology(code string, forest []models.CodedRelationship) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ontologies[code] = forest
}

// Put stores a resource directly, assigning an id when missing.
func (b *Backend) Put(r models.Resource) models.Resource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.putLocked(r)
}

// Resource returns a stored resource.
func (b *Backend) Resource(id string) (models.Resource, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.resources[id]
	return r, ok
}

// Resources returns every stored resource in insertion order.
func (b *Backend) Resources() []models.Resource {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Resource, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.resources[id])
	}
	return out
}

// Trackers returns the stored trackers.
func (b *Backend) Trackers() []models.Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Tracker, len(b.trackers))
	for i, t := range b.trackers {
		out[i] = t.Clone()
	}
	return out
}

func (b *Backend) putLocked(r models.Resource) models.Resource {
	if r.ID == "" {
		b.nextID++
		r.ID = fmt.Sprintf("r%d", b.nextID)
	}
	if _, ok := b.resources[r.ID]; !ok {
		b.order = append(b.order, r.ID)
	}
	b.resources[r.ID] = r
	return r
}

func (b *Backend) enter(op string) error {
	b.calls[op]++
	return b.failures[op]
}

// FetchTrackers implements remote.Backend.
func (b *Backend) FetchTrackers(ctx context.Context, includePublic bool) ([]models.Tracker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpFetchTrackers); err != nil {
		return nil, err
	}
	out := make([]models.Tracker, len(b.trackers))
	for i, t := range b.trackers {
		out[i] = t.Clone()
	}
	return out, nil
}

func (b *Backend) installLocked(s models.BulkInstalledMetricSettings) (models.BulkInstalledMetricSettings, error) {
	for i, t := range b.trackers {
		if t.MetricKey() == s.MetricID || t.ID == s.MetricID {
			b.trackers[i] = t.ApplySettings(s)
			return s, nil
		}
	}
	return s, fmt.Errorf("tracker %s: %w", s.MetricID, remote.ErrNotFound)
}

// UpsertTracker implements remote.Backend.
func (b *Backend) UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.BulkInstalledMetricSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpUpsertTracker); err != nil {
		return models.BulkInstalledMetricSettings{}, err
	}
	return b.installLocked(models.BulkInstalledMetricSettings{MetricID: metricID, InstalledMetricSettings: settings})
}

// UpsertTrackers implements remote.Backend.
func (b *Backend) UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpUpsertTrackers); err != nil {
		return err
	}
	for _, s := range settings {
		if _, err := b.installLocked(s); err != nil {
			return err
		}
	}
	return nil
}

// UninstallTracker implements remote.Backend.
func (b *Backend) UninstallTracker(ctx context.Context, metricID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpUninstallTracker); err != nil {
		return err
	}
	for i, t := range b.trackers {
		if t.MetricID == metricID {
			b.trackers[i] = t.Demote()
			return nil
		}
	}
	return fmt.Errorf("install %s: %w", metricID, remote.ErrNotFound)
}

// FetchTrackerValues implements remote.Backend. A resource belongs to vc
// when one of its codings is in vc's system.
func (b *Backend) FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) ([]models.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpFetchTrackerValues); err != nil {
		return nil, err
	}
	b.intervals = append(b.intervals, interval)

	var out []models.Resource
	for _, id := range b.order {
		r := b.resources[id]
		if !inContext(r, vc) {
			continue
		}
		v, err := fhir.ExtractValue(r, time.UTC)
		if err != nil {
			return nil, err
		}
		if interval.Contains(v.CreatedDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func inContext(r models.Resource, vc models.ValuesContext) bool {
	for _, c := range r.Code.Coding {
		if c.System == vc.System {
			return true
		}
	}
	return false
}

// UpsertTrackerResource implements remote.Backend.
func (b *Backend) UpsertTrackerResource(ctx context.Context, resource models.Resource) (models.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpUpsertTrackerResource); err != nil {
		return models.Resource{}, err
	}
	return b.putLocked(resource), nil
}

// DeleteTrackerResource implements remote.Backend.
func (b *Backend) DeleteTrackerResource(ctx context.Context, rt models.ResourceType, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpDeleteTrackerResource); err != nil {
		return false, err
	}
	if b.noDelete {
		return false, nil
	}
	if _, ok := b.resources[id]; !ok {
		return false, nil
	}
	delete(b.resources, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// FetchOntology implements remote.Backend.
func (b *Backend) FetchOntology(ctx context.Context, code string) ([]models.CodedRelationship, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpFetchOntology); err != nil {
		return nil, err
	}
	return b.ontologies[code], nil
}
