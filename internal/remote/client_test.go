// ABOUTME: Tests for the HTTP client against canned httptest handlers.
// ABOUTME: Covers headers, routing, error mapping and breaker behavior.
package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:   srv.URL + "/",
		Token:     "secret",
		Account:   "acct",
		Project:   "proj",
		PatientID: "pat",
	})
}

func TestClientSendsHeadersAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, RouteTrackers, r.URL.Path)
		assert.Equal(t, "proj", r.URL.Query().Get(QueryProject))
		assert.Equal(t, "true", r.URL.Query().Get(QueryIncludePublic))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "acct", r.Header.Get(HeaderAccount))
		assert.Equal(t, CapabilitiesVersion, r.Header.Get(HeaderCapabilities))
		_ = json.NewEncoder(w).Encode([]models.Tracker{{ID: "t1", Name: "Water"}})
	})

	trackers, err := c.FetchTrackers(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, trackers, 1)
	assert.Equal(t, "Water", trackers[0].Name)
}

func TestClientSearchValues(t *testing.T) {
	start := time.Date(2021, 7, 23, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, RouteValuesSearch, r.URL.Path)
		var req SearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.TrackerCodeSystem, req.System)
		assert.Equal(t, models.TrackerCode, req.CodeBelow)
		assert.Equal(t, "pat", req.PatientID)
		assert.True(t, start.Equal(req.Start))
		_ = json.NewEncoder(w).Encode(SearchResponse{Resources: []models.Resource{{ResourceType: models.ResourceObservation, ID: "r1"}}})
	})

	res, err := c.FetchTrackerValues(context.Background(), models.DefaultValuesContext, models.Interval{Start: start, End: models.EndOfDay(start)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "r1", res[0].ID)
}

func TestClientUpsertResourceRoutes(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		var res models.Resource
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&res))
		if res.ID == "" {
			res.ID = "new-id"
		}
		_ = json.NewEncoder(w).Encode(res)
	})

	created, err := c.UpsertTrackerResource(context.Background(), models.Resource{ResourceType: models.ResourceObservation})
	require.NoError(t, err)
	assert.Equal(t, "new-id", created.ID)

	_, err = c.UpsertTrackerResource(context.Background(), created)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /v1/fhir/Observation",
		"PUT /v1/fhir/Observation/new-id",
	}, seen)
}

func TestClientDeleteResource(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/fhir/Procedure/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(DeleteResponse{Success: true})
	})

	ok, err := c.DeleteTrackerResource(context.Background(), models.ResourceProcedure, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientUpsertTrackerDefaultsMetricID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, RouteInstalls+"/m1", r.URL.Path)
		_, _ = w.Write([]byte(`{"unit":"cup"}`))
	})

	out, err := c.UpsertTracker(context.Background(), "m1", models.InstalledMetricSettings{Unit: "cup"})
	require.NoError(t, err)
	assert.Equal(t, "m1", out.MetricID)
	assert.Equal(t, "cup", out.Unit)
}

func TestClientStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such install"}`))
	})

	err := c.UninstallTracker(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, ErrStatus))
	assert.Contains(t, err.Error(), "uninstall tracker")
	assert.Contains(t, err.Error(), "no such install")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.False(t, se.Temporary())
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 10; i++ {
		_, err := c.FetchOntology(context.Background(), "veg")
		require.Error(t, err)
	}
	assert.Equal(t, 10, calls, "4xx responses must not open the breaker")
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 8; i++ {
		_, _ = c.FetchOntology(context.Background(), "veg")
	}
	assert.Equal(t, 5, calls, "breaker opens after five consecutive failures")
}
