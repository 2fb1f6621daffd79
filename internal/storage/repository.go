// ABOUTME: Repository interface for local tracker storage.
// ABOUTME: The backend contract plus catalog, export and lifecycle operations.
package storage

import (
	"context"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

// Repository is the local store: the backend contract plus what the catalog,
// export and migration paths need. Migration writes through it.
type Repository interface {
	remote.Backend

	// Catalog operations
	CreateTracker(ctx context.Context, t models.Tracker, public bool) error
	GetTracker(ctx context.Context, idOrPrefix string) (models.Tracker, error)
	ResolveMetricID(ctx context.Context, idOrPrefix string) (string, error)
	PutOntology(ctx context.Context, code string, forest []models.CodedRelationship) error
	RestoreInstall(ctx context.Context, t models.Tracker) error

	// Value resources
	GetResource(ctx context.Context, idOrPrefix string) (models.Resource, error)
	ListResources(ctx context.Context, metricID string) ([]models.Resource, error)

	// Export/Import
	GetAllData(ctx context.Context) (*ExportData, error)
	ImportData(ctx context.Context, data *ExportData) error

	// Lifecycle
	Close() error
}

var _ Repository = (*DB)(nil)
