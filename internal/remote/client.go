// ABOUTME: HTTP/JSON implementation of Backend behind a circuit breaker.
// ABOUTME: Server-side failures trip the breaker; client errors do not.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
	"github.com/sony/gobreaker/v2"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string
	Token     string
	Account   string
	Project   string
	PatientID string
	Timeout   time.Duration
	// HTTPClient overrides the default client, e.g. in tests.
	HTTPClient *http.Client
}

// Client talks to a tracker backend over HTTP.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker[[]byte]
}

var _ Backend = (*Client)(nil)

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	name := "tracker-backend"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{cfg: cfg, http: hc, cb: cb}
}

// do sends in as JSON and decodes the response into out, either may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, query, in, out)
	metrics.RecordRemoteRequest(op, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader = http.NoBody
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Code: resp.StatusCode, Body: errorMessage(data)}
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", ContentTypeJSON)
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", ContentTypeJSON)
	}
	req.Header.Set(HeaderCapabilities, CapabilitiesVersion)
	if c.cfg.Account != "" {
		req.Header.Set(HeaderAccount, c.cfg.Account)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

// errorMessage extracts the error field of a JSON error body.
func errorMessage(body []byte) string {
	if int64(len(body)) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) projectQuery() url.Values {
	q := url.Values{}
	if c.cfg.Project != "" {
		q.Set(QueryProject, c.cfg.Project)
	}
	return q
}

// FetchTrackers lists catalog and installed trackers.
func (c *Client) FetchTrackers(ctx context.Context, includePublic bool) ([]models.Tracker, error) {
	q := c.projectQuery()
	if includePublic {
		q.Set(QueryIncludePublic, strconv.FormatBool(true))
	}
	var trackers []models.Tracker
	if err := c.do(ctx, "fetch trackers", http.MethodGet, RouteTrackers, q, nil, &trackers); err != nil {
		return nil, err
	}
	return trackers, nil
}

// UpsertTracker installs or updates a tracker's settings.
func (c *Client) UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.BulkInstalledMetricSettings, error) {
	var out models.BulkInstalledMetricSettings
	path := RouteInstalls + "/" + url.PathEscape(metricID)
	if err := c.do(ctx, "upsert tracker", http.MethodPut, path, c.projectQuery(), settings, &out); err != nil {
		return out, err
	}
	if out.MetricID == "" {
		out.MetricID = metricID
	}
	return out, nil
}

// UpsertTrackers updates many installs at once.
func (c *Client) UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error {
	return c.do(ctx, "upsert trackers", http.MethodPatch, RouteInstalls, c.projectQuery(), settings, nil)
}

// UninstallTracker removes an install.
func (c *Client) UninstallTracker(ctx context.Context, metricID string) error {
	path := RouteInstalls + "/" + url.PathEscape(metricID)
	return c.do(ctx, "uninstall tracker", http.MethodDelete, path, c.projectQuery(), nil, nil)
}

// FetchTrackerValues searches value resources of vc within interval.
func (c *Client) FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) ([]models.Resource, error) {
	req := SearchRequest{
		System:    vc.System,
		CodeBelow: vc.CodeBelow,
		Start:     interval.Start,
		End:       interval.End,
		PatientID: c.cfg.PatientID,
	}
	var res SearchResponse
	if err := c.do(ctx, "fetch tracker values", http.MethodPost, RouteValuesSearch, c.projectQuery(), req, &res); err != nil {
		return nil, err
	}
	return res.Resources, nil
}

// UpsertTrackerResource creates a resource without an id, else updates it.
func (c *Client) UpsertTrackerResource(ctx context.Context, resource models.Resource) (models.Resource, error) {
	method, path := http.MethodPost, RouteFHIR+"/"+string(resource.ResourceType)
	if resource.ID != "" {
		method, path = http.MethodPut, path+"/"+url.PathEscape(resource.ID)
	}
	var out models.Resource
	if err := c.do(ctx, "upsert tracker resource", method, path, nil, resource, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DeleteTrackerResource deletes a resource, reporting whether it existed.
func (c *Client) DeleteTrackerResource(ctx context.Context, rt models.ResourceType, id string) (bool, error) {
	path := RouteFHIR + "/" + string(rt) + "/" + url.PathEscape(id)
	var out DeleteResponse
	if err := c.do(ctx, "delete tracker resource", http.MethodDelete, path, nil, nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// FetchOntology loads the ontology forest below code.
func (c *Client) FetchOntology(ctx context.Context, code string) ([]models.CodedRelationship, error) {
	path := RouteOntology + "/" + url.PathEscape(code)
	var forest []models.CodedRelationship
	if err := c.do(ctx, "fetch ontology", http.MethodGet, path, c.projectQuery(), nil, &forest); err != nil {
		return nil, err
	}
	return forest, nil
}
