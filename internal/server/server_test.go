// ABOUTME: End-to-end tests of the datastore through the HTTP client.
// ABOUTME: Each test serves a fresh SQLite store over httptest.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func waterTracker() models.Tracker {
	return *models.NewTracker("water", "Water", models.ResourceObservation, models.UnitType{
		Code: "serving", System: models.UCUMSystem, Unit: "serving", Display: "servings", Default: true, Target: 8,
	})
}

type harness struct {
	db     *storage.DB
	srv    *httptest.Server
	client *remote.Client
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateTracker(context.Background(), waterTracker(), false))

	srv := httptest.NewServer(New(db, opts).Handler())
	t.Cleanup(srv.Close)

	return &harness{
		db:  db,
		srv: srv,
		client: remote.NewClient(remote.ClientConfig{
			BaseURL: srv.URL,
			Token:   opts.Token,
			Project: "proj",
		}),
	}
}

func TestInstallAndFetchTrackers(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	s, err := h.client.UpsertTracker(ctx, "water", models.InstalledMetricSettings{Unit: "serving", Target: 6})
	require.NoError(t, err)
	assert.NotEqual(t, "water", s.MetricID)

	trackers, err := h.client.FetchTrackers(ctx, false)
	require.NoError(t, err)
	require.Len(t, trackers, 1)
	assert.Equal(t, s.MetricID, trackers[0].MetricID)
	require.NotNil(t, trackers[0].Target)
	assert.Equal(t, 6.0, *trackers[0].Target)

	err = h.client.UpsertTrackers(ctx, []models.BulkInstalledMetricSettings{{
		MetricID:                s.MetricID,
		InstalledMetricSettings: models.InstalledMetricSettings{Unit: "serving", Target: 6, Order: 4},
	}})
	require.NoError(t, err)

	got, err := h.db.GetTracker(ctx, s.MetricID)
	require.NoError(t, err)
	require.NotNil(t, got.Order)
	assert.Equal(t, 4, *got.Order)

	require.NoError(t, h.client.UninstallTracker(ctx, s.MetricID))
	err = h.client.UninstallTracker(ctx, s.MetricID)
	assert.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)
}

func TestInvalidSettingsAreRejected(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.client.UpsertTracker(context.Background(), "water", models.InstalledMetricSettings{Target: 1})
	var se *remote.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestResourceLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	s, err := h.client.UpsertTracker(ctx, "water", models.InstalledMetricSettings{Unit: "serving", Target: 8})
	require.NoError(t, err)
	water := waterTracker().ApplySettings(s)

	created, err := h.client.UpsertTrackerResource(ctx, fhir.ToObservation(fhir.Settings{Tracker: water, Value: 2, CreateDate: noon}, nil))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := h.client.FetchTrackerValues(ctx, models.DefaultValuesContext, models.DayInterval(noon))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	created.ValueQuantity.Value = 3
	updated, err := h.client.UpsertTrackerResource(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	stored, err := h.db.GetResource(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.ValueQuantity.Value)

	ok, err := h.client.DeleteTrackerResource(ctx, models.ResourceObservation, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.client.DeleteTrackerResource(ctx, models.ResourceObservation, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnsupportedResourceType(t *testing.T) {
	h := newHarness(t, Options{})

	resp, err := http.Post(h.srv.URL+remote.RouteFHIR+"/Condition", remote.ContentTypeJSON, strings.NewReader(`{"resourceType":"Condition"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchRejectsInvertedRange(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.client.FetchTrackerValues(context.Background(), models.DefaultValuesContext,
		models.Interval{Start: noon, End: noon.Add(-time.Hour)})
	var se *remote.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestFetchOntology(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	forest, err := h.client.FetchOntology(ctx, "water")
	require.NoError(t, err)
	assert.NotNil(t, forest)
	assert.Empty(t, forest)

	tea := models.Code{System: "http://snomed.info/sct", Code: "tea"}
	require.NoError(t, h.db.PutOntology(ctx, "water", []models.CodedRelationship{{Code: tea}}))

	forest, err = h.client.FetchOntology(ctx, "water")
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.True(t, forest[0].Code.Equal(tea))
}

func TestBearerToken(t *testing.T) {
	h := newHarness(t, Options{Token: "secret"})
	ctx := context.Background()

	_, err := h.client.FetchTrackers(ctx, false)
	require.NoError(t, err)

	anon := remote.NewClient(remote.ClientConfig{BaseURL: h.srv.URL, Token: "wrong"})
	_, err = anon.FetchTrackers(ctx, false)
	var se *remote.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRequestsAreRecordedByRoutePattern(t *testing.T) {
	h := newHarness(t, Options{Metrics: true})
	ctx := context.Background()

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, remote.RouteOntology+"/{code}", "200")
	before := testutil.ToFloat64(counter)

	_, err := h.client.FetchOntology(ctx, "water")
	require.NoError(t, err)
	_, err = h.client.FetchOntology(ctx, "sleep")
	require.NoError(t, err)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
