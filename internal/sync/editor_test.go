// ABOUTME: Tests for the single value editor.
// ABOUTME: Covers idempotent saves, category changes and zero-value deletes.
package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/ontology"
	"github.com/harperreed/tracker/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededEditor(t *testing.T) (*fixture, *Editor) {
	t.Helper()
	water := waterTracker()
	f := newFixture(t, water)
	f.seed(t, water, 2, noon, &juice)
	records := f.day(t, models.DefaultValuesContext, water, today)
	require.Len(t, records, 1)

	return f, NewEditor(f.service, f.bus, EditorConfig{
		Context: models.DefaultValuesContext,
		Tracker: water,
		Account: account,
		Value:   records[0],
		Now:     fixedNow,
	})
}

func TestEditorUnchangedSaveMakesNoCall(t *testing.T) {
	f, e := seededEditor(t)

	res, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, "r1", res.Value.ID)
	assert.Equal(t, 0, f.backend.Calls(remotetest.OpUpsertTrackerResource))
	assert.Equal(t, 0, f.backend.Calls(remotetest.OpDeleteTrackerResource))
}

func TestEditorSavesChangedValue(t *testing.T) {
	f, e := seededEditor(t)
	got := collect(f.bus)

	e.Step(1)
	assert.Equal(t, 3.0, e.Value())
	res, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Saved, res.Outcome)
	assert.Equal(t, "saved", res.Outcome.String())

	r, ok := f.backend.Resource("r1")
	require.True(t, ok)
	assert.Equal(t, 3.0, r.ValueQuantity.Value)
	assert.Equal(t, juice, *r.Code.First())
	assert.Equal(t, noon.Format(fhir.TimeLayout), r.EffectiveDateTime, "keeps the created date")
	require.Len(t, *got, 1)

	res, err = e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome, "second save is idempotent")
	assert.Equal(t, 1, f.backend.Calls(remotetest.OpUpsertTrackerResource))
}

func TestEditorChangesCategory(t *testing.T) {
	f, e := seededEditor(t)
	tea := models.Code{System: juice.System, Code: "tea", Display: "Tea"}

	e.Selection().ToggleCategory(&ontology.Node{Code: tea})
	assert.Equal(t, tea, *e.Code())
	_, err := e.Save(context.Background())
	require.NoError(t, err)

	r, _ := f.backend.Resource("r1")
	assert.Equal(t, tea, *r.Code.First())
	assert.Equal(t, 2.0, r.ValueQuantity.Value)
}

func TestEditorZeroDeletes(t *testing.T) {
	f, e := seededEditor(t)
	got := collect(f.bus)

	e.Step(-5)
	assert.Equal(t, 0.0, e.Value(), "steps floor at zero")
	res, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Outcome)

	_, ok := f.backend.Resource("r1")
	assert.False(t, ok)
	require.Len(t, *got, 1)
	assert.True(t, (*got)[0][0].Drop)
	assert.Empty(t, f.day(t, models.DefaultValuesContext, waterTracker(), today))

	res, err = e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
}

func TestEditorDeleteFailure(t *testing.T) {
	f, e := seededEditor(t)
	f.backend.RefuseDeletes(true)

	e.SetValue(0)
	_, err := e.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeleteFailed)
	assert.Equal(t, "Could not delete the value", models.UserMessage(err))
	_, ok := f.backend.Resource("r1")
	assert.True(t, ok)
}

func TestEditorDeleteRemovesZeroValue(t *testing.T) {
	water := waterTracker()
	f := newFixture(t, water)
	id := f.seed(t, water, 0, noon, nil)
	records := f.day(t, models.DefaultValuesContext, water, today)
	require.Len(t, records, 1)
	got := collect(f.bus)

	e := NewEditor(f.service, f.bus, EditorConfig{
		Context: models.DefaultValuesContext,
		Tracker: water,
		Account: account,
		Value:   records[0],
		Now:     fixedNow,
	})
	res, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome, "a zero record saved as zero is unchanged")

	res, err = e.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Outcome)
	_, ok := f.backend.Resource(id)
	assert.False(t, ok)
	require.Len(t, *got, 1)
	assert.True(t, (*got)[0][0].Drop)
}

func TestEditorRunSavesAfterCallback(t *testing.T) {
	f, e := seededEditor(t)

	res, err := e.Run(context.Background(), func(e *Editor) error {
		e.SetPreferredValue(5)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Saved, res.Outcome)

	failure := errors.New("closed early")
	res, err = e.Run(context.Background(), func(e *Editor) error {
		e.SetValue(6)
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, Saved, res.Outcome, "saves even when the callback fails")

	r, _ := f.backend.Resource("r1")
	assert.Equal(t, 6.0, r.ValueQuantity.Value)
}
