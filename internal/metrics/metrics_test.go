// ABOUTME: Tests for the metric recording helpers.
// ABOUTME: Uses prometheus testutil to read counter values back.
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRemoteRequest(t *testing.T) {
	before := testutil.ToFloat64(RemoteRequestErrors.WithLabelValues("fetch_values"))

	RecordRemoteRequest("fetch_values", 10*time.Millisecond, nil)
	RecordRemoteRequest("fetch_values", 20*time.Millisecond, errors.New("boom"))

	got := testutil.ToFloat64(RemoteRequestErrors.WithLabelValues("fetch_values"))
	if got != before+1 {
		t.Errorf("errors = %v, want %v", got, before+1)
	}
}

func TestRecordWrite(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("write failed"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SyncWrites.WithLabelValues("split", tt.outcome)
			before := testutil.ToFloat64(c)
			RecordWrite("split", tt.err)
			if got := testutil.ToFloat64(c); got != before+1 {
				t.Errorf("%s writes = %v, want %v", tt.outcome, got, before+1)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("GET", "/track-tiles/trackers", "200")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("GET", "/track-tiles/trackers", "200", time.Millisecond)
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("requests = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	CacheHits.WithLabelValues("values").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tracker_cache_hits_total") {
		t.Error("expected tracker_cache_hits_total in output")
	}
}
