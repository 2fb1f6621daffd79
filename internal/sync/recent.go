// ABOUTME: Records recently used categories from value change events.
// ABOUTME: Writes happen synchronously inside the event handler.
package sync

import (
	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
)

// RecentValues keeps each metric's recently used codings up to date.
type RecentValues struct {
	store       recent.Store
	unsubscribe func()
	// OnError receives persistence failures.
	OnError func(error)
}

// NewRecentValues starts recording updates published on bus.
func NewRecentValues(store recent.Store, bus *events.Bus) *RecentValues {
	r := &RecentValues{store: store}
	r.unsubscribe = bus.ValuesChanged.Subscribe(r.handle)
	return r
}

func (r *RecentValues) handle(updates []events.ValueUpdate) {
	var order []string
	byMetric := map[string][]recent.CodedValue{}
	for _, u := range updates {
		first := u.Value.Code.First()
		if u.SkipRecent || u.Drop || u.Value.Value == 0 || first == nil {
			continue
		}
		if _, ok := byMetric[u.MetricID]; !ok {
			order = append(order, u.MetricID)
		}
		byMetric[u.MetricID] = append(byMetric[u.MetricID], recent.CodedValue{
			Value: u.Value.Value,
			Code:  models.Code{System: first.System, Code: first.Code, Display: first.Display},
		})
	}

	for _, metricID := range order {
		if _, err := recent.Push(r.store, metricID, byMetric[metricID]...); err != nil {
			logging.Component("recent").Warn().Err(err).Str("metric", metricID).Msg("could not record recent values")
			if r.OnError != nil {
				r.OnError(err)
			}
		}
	}
}

// Load returns metricID's recent values limited to codings, or all of them
// when codings is nil.
func (r *RecentValues) Load(metricID string, codings []models.Code) ([]recent.CodedValue, error) {
	values, err := r.store.Load(metricID)
	if err != nil {
		return nil, err
	}
	if codings == nil {
		return values, nil
	}
	return recent.Filter(values, codings), nil
}

// Close stops recording.
func (r *RecentValues) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}
