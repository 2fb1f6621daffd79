// ABOUTME: Contract of the tracker backend and its HTTP wire format.
// ABOUTME: Implemented by the HTTP Client and by the local SQLite store.
package remote

import (
	"context"
	"time"

	"github.com/harperreed/tracker/internal/models"
)

// Backend persists trackers, installs, value resources and ontologies.
type Backend interface {
	FetchTrackers(ctx context.Context, includePublic bool) ([]models.Tracker, error)
	UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.BulkInstalledMetricSettings, error)
	UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error
	UninstallTracker(ctx context.Context, metricID string) error
	FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) ([]models.Resource, error)
	UpsertTrackerResource(ctx context.Context, resource models.Resource) (models.Resource, error)
	DeleteTrackerResource(ctx context.Context, rt models.ResourceType, id string) (bool, error)
	FetchOntology(ctx context.Context, code string) ([]models.CodedRelationship, error)
}

// HTTP routes shared by the client and the datastore server.
const (
	RouteTrackers     = "/track-tiles/trackers"
	RouteInstalls     = "/track-tiles/metrics/installs"
	RouteValuesSearch = "/v1/tracker-values/search"
	RouteFHIR         = "/v1/fhir"
	RouteOntology     = "/v1/ontology"
)

// Request headers.
const (
	HeaderAccount            = "LifeOmic-Account"
	HeaderCapabilities       = "LifeOmic-TrackTile-Capabilities-Version"
	CapabilitiesVersion      = "2"
	QueryProject             = "project"
	QueryIncludePublic       = "include-public"
	ContentTypeJSON          = "application/json"
	maxErrorBodySize   int64 = 64 * 1024
)

// SearchRequest selects value resources below a code within a time range.
type SearchRequest struct {
	System    string    `json:"system" validate:"required"`
	CodeBelow string    `json:"codeBelow"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required,gtefield=Start"`
	PatientID string    `json:"patientId,omitempty"`
}

// SearchResponse lists matching resources.
type SearchResponse struct {
	Resources []models.Resource `json:"resources"`
}

// DeleteResponse reports whether a resource was removed.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
