// ABOUTME: Save-on-demand editor for a single tracker value and its category.
// ABOUTME: Saving is idempotent; a zero value deletes the record instead.
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
	"github.com/harperreed/tracker/internal/ontology"
	"github.com/harperreed/tracker/internal/units"
)

// ErrDeleteFailed is returned when a zero-value save could not delete the record.
var ErrDeleteFailed error = models.NewUserError("Could not delete the value")

// Outcome describes what a save did.
type Outcome int

const (
	Unchanged Outcome = iota
	Saved
	Deleted
)

func (o Outcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// SaveResult is the outcome of Editor.Save. Value is the original value when
// unchanged, the server's value when saved and zero when deleted.
type SaveResult struct {
	Outcome Outcome
	Value   models.TrackerValue
}

// EditorConfig configures an Editor.
type EditorConfig struct {
	Context models.ValuesContext
	Tracker models.Tracker
	Account Account
	Value   models.TrackerValue
	// Forest is the tracker's ontology.
	Forest []models.CodedRelationship
	Now    func() time.Time
}

// Editor holds the edited amount and category of one value.
type Editor struct {
	store     Store
	bus       *events.Bus
	cfg       EditorConfig
	result    ontology.Result
	selection ontology.Selection
	value     float64
}

// NewEditor seeds an editor from cfg.Value.
func NewEditor(store Store, bus *events.Bus, cfg EditorConfig) *Editor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	result := ontology.Extract(cfg.Value.Code, cfg.Forest, cfg.Tracker.Coding())
	return &Editor{
		store:     store,
		bus:       bus,
		cfg:       cfg,
		result:    result,
		selection: ontology.SelectionFrom(result),
		value:     cfg.Value.Value,
	}
}

// Categories returns the extracted category choices.
func (e *Editor) Categories() ontology.Result {
	return e.result
}

// Selection returns the editable selection.
func (e *Editor) Selection() *ontology.Selection {
	return &e.selection
}

// Value returns the edited amount in stored units.
func (e *Editor) Value() float64 {
	return e.value
}

// SetValue sets the amount in stored units.
func (e *Editor) SetValue(stored float64) {
	e.value = stored
}

// SetPreferredValue sets the amount in the tracker's preferred unit.
func (e *Editor) SetPreferredValue(v float64) {
	e.value = units.ToStored(v, e.cfg.Tracker)
}

// Step changes the amount by n steps of the preferred unit's step amount.
func (e *Editor) Step(n int) {
	step := 1.0
	if u, ok := units.PreferredUnitType(e.cfg.Tracker); ok && u.StepAmount != nil {
		step = *u.StepAmount
	}
	e.value += float64(n) * units.ToStored(step, e.cfg.Tracker)
	if e.value < 0 {
		e.value = 0
	}
}

// Code returns the code a save would write.
func (e *Editor) Code() *models.Code {
	return e.selection.Code(e.cfg.Value.Code.First())
}

// Save persists the edit.
func (e *Editor) Save(ctx context.Context) (SaveResult, error) {
	original := e.cfg.Value
	code := e.Code()
	t := e.cfg.Tracker

	if models.CodesEqual(original.Code.First(), code) && e.value == original.Value {
		return SaveResult{Outcome: Unchanged, Value: original}, nil
	}

	if e.value > 0 {
		date := original.CreatedDate
		if date.IsZero() {
			date = e.cfg.Now()
		}
		s := e.cfg.Account.settings(t, units.ToPreferred(e.value, t), date, original.ID)
		if err := fhir.CheckSettings(s); err != nil {
			return SaveResult{}, err
		}
		write := code
		if write != nil && write.Equal(t.Coding()) {
			write = nil
		}
		v, err := e.store.UpsertTrackerResource(ctx, e.cfg.Context, fhir.ToResource(t.ResourceType, s, write))
		metrics.RecordWrite("editor", err)
		if err != nil {
			return SaveResult{}, fmt.Errorf("save value: %w", err)
		}
		publish(e.bus, []events.ValueUpdate{{Context: e.cfg.Context, MetricID: t.MetricKey(), Value: v}})
		e.cfg.Value = v
		return SaveResult{Outcome: Saved, Value: v}, nil
	}

	return e.Delete(ctx)
}

// Delete removes the edited record whatever its current amount.
func (e *Editor) Delete(ctx context.Context) (SaveResult, error) {
	original := e.cfg.Value
	t := e.cfg.Tracker

	removed, err := e.store.DeleteTrackerResource(ctx, e.cfg.Context, t.ResourceType, original.ID)
	metrics.RecordWrite("editor", err)
	if err != nil {
		return SaveResult{}, fmt.Errorf("delete value: %w", err)
	}
	if !removed {
		return SaveResult{}, ErrDeleteFailed
	}
	publish(e.bus, []events.ValueUpdate{{Context: e.cfg.Context, MetricID: t.MetricKey(), Value: original, Drop: true}})
	e.cfg.Value.Value = 0
	e.value = 0
	return SaveResult{Outcome: Deleted}, nil
}

// Run calls fn and then saves, even when fn fails.
func (e *Editor) Run(ctx context.Context, fn func(*Editor) error) (result SaveResult, err error) {
	defer func() {
		saved, saveErr := e.Save(ctx)
		result = saved
		err = errors.Join(err, saveErr)
	}()
	return SaveResult{}, fn(e)
}
