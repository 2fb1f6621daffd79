// ABOUTME: Write strategies turning a desired day total into record writes.
// ABOUTME: Split spreads a delta over many records; SingleRecord edits one.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
)

// WriteRequest asks a strategy to bring a metric's day total to Total.
type WriteRequest struct {
	Context models.ValuesContext
	Tracker models.Tracker
	// Day is the start of the edited day.
	Day time.Time
	// Records are the day's records in cache order.
	Records []models.TrackerValue
	// Total is the desired day total in preferred units.
	Total   float64
	Now     time.Time
	Account Account
}

// Strategy persists a new day total and reports the resulting updates.
type Strategy interface {
	Name() string
	Write(ctx context.Context, store Store, req WriteRequest) ([]events.ValueUpdate, error)
}

func updates(req WriteRequest, saved, dropped []models.TrackerValue) []events.ValueUpdate {
	out := make([]events.ValueUpdate, 0, len(saved)+len(dropped))
	for _, v := range saved {
		out = append(out, events.ValueUpdate{Context: req.Context, MetricID: req.Tracker.MetricKey(), Value: v})
	}
	for _, v := range dropped {
		out = append(out, events.ValueUpdate{Context: req.Context, MetricID: req.Tracker.MetricKey(), Value: v, Drop: true})
	}
	return out
}

// categoryCode returns v's first coding unless it is the tracker's own.
func categoryCode(v *models.TrackerValue, t models.Tracker) *models.Code {
	if v == nil {
		return nil
	}
	first := v.Code.First()
	if first == nil || first.Equal(t.Coding()) {
		return nil
	}
	return first
}

// SplitStrategy grows the first record and deletes records a decrease
// overflows, walking the records in order.
type SplitStrategy struct{}

// Name implements Strategy.
func (SplitStrategy) Name() string { return "split" }

// Write implements Strategy.
func (SplitStrategy) Write(ctx context.Context, store Store, req WriteRequest) ([]events.ValueUpdate, error) {
	t := req.Tracker
	delta := units.ToStored(req.Total, t) - models.SumValues(req.Records)

	var saved, dropped []models.TrackerValue
	for i := 0; delta != 0; {
		var current *models.TrackerValue
		var base float64
		if i < len(req.Records) {
			current = &req.Records[i]
			base = current.Value
		}

		residual := base + delta
		if residual > 0 {
			delta = 0
			id := ""
			if current != nil {
				id = current.ID
			}
			s := req.Account.settings(t, units.ToPreferred(residual, t), createDate(req.Day, req.Now), id)
			if err := fhir.CheckSettings(s); err != nil {
				return nil, err
			}
			v, err := store.UpsertTrackerResource(ctx, req.Context, fhir.ToResource(t.ResourceType, s, categoryCode(current, t)))
			if err != nil {
				return nil, fmt.Errorf("save record: %w", err)
			}
			saved = append(saved, v)
			continue
		}

		if current == nil {
			break
		}
		i++
		delta = residual
		removed, err := store.DeleteTrackerResource(ctx, req.Context, t.ResourceType, current.ID)
		if err != nil {
			return nil, fmt.Errorf("delete record %s: %w", current.ID, err)
		}
		if removed {
			dropped = append(dropped, *current)
		}
	}
	return updates(req, saved, dropped), nil
}

// SingleRecordStrategy applies the whole change to the first record coded
// with the tracker's own coding, creating it when missing.
type SingleRecordStrategy struct{}

// Name implements Strategy.
func (SingleRecordStrategy) Name() string { return "single" }

// Write implements Strategy.
func (SingleRecordStrategy) Write(ctx context.Context, store Store, req WriteRequest) ([]events.ValueUpdate, error) {
	t := req.Tracker
	own := models.Code{System: t.System, Code: t.MetricKey()}

	var record *models.TrackerValue
	for i := range req.Records {
		if first := req.Records[i].Code.First(); first != nil && first.Equal(own) {
			record = &req.Records[i]
			break
		}
	}

	var recordValue float64
	if record != nil {
		recordValue = units.ToPreferred(record.Value, t)
	}
	stored := units.ToPreferred(models.SumValues(req.Records), t)
	value := recordValue + req.Total - stored

	if value <= 0 {
		if record == nil {
			return nil, nil
		}
		removed, err := store.DeleteTrackerResource(ctx, req.Context, t.ResourceType, record.ID)
		if err != nil {
			return nil, fmt.Errorf("delete record %s: %w", record.ID, err)
		}
		if !removed {
			return nil, nil
		}
		return updates(req, nil, []models.TrackerValue{*record}), nil
	}

	date := createDate(req.Day, req.Now)
	id := ""
	if record != nil {
		id = record.ID
		date = record.CreatedDate
	}
	s := req.Account.settings(t, value, date, id)
	if err := fhir.CheckSettings(s); err != nil {
		return nil, err
	}
	v, err := store.UpsertTrackerResource(ctx, req.Context, fhir.ToResource(t.ResourceType, s, nil))
	if err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return updates(req, []models.TrackerValue{v}, nil), nil
}

// StrategyFor picks single-record writes for pillar trackers and split
// writes otherwise.
func StrategyFor(t models.Tracker) Strategy {
	if t.System == models.TrackerPillarCodeSystem {
		return SingleRecordStrategy{}
	}
	return SplitStrategy{}
}
