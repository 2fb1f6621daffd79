// ABOUTME: Value resource and ontology operations for SQLite storage.
// ABOUTME: Resources are stored as JSON bodies indexed by coding system and date.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

// sortableTime renders UTC instants with a fixed width so they compare
// lexically in SQL.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

func sortable(t time.Time) string {
	return t.UTC().Format(sortableTime)
}

// UpsertTrackerResource creates the resource when it has no id, else
// replaces the stored resource with that id.
func (d *DB) UpsertTrackerResource(ctx context.Context, r models.Resource) (models.Resource, error) {
	if !r.ResourceType.IsValid() {
		return models.Resource{}, fmt.Errorf("upsert resource: invalid resource type %q", r.ResourceType)
	}
	coding, ok := fhir.MetricCoding(r.Code.Coding)
	if !ok {
		return models.Resource{}, fmt.Errorf("upsert resource %s: no tracker coding", r.ID)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	v, err := fhir.ExtractValue(r, time.UTC)
	if err != nil {
		return models.Resource{}, fmt.Errorf("upsert resource: %w", err)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return models.Resource{}, fmt.Errorf("encode resource: %w", err)
	}

	query := `
		INSERT INTO resources (id, resource_type, system, code, project, patient_id, created_date, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			resource_type = excluded.resource_type, system = excluded.system, code = excluded.code,
			project = excluded.project, patient_id = excluded.patient_id,
			created_date = excluded.created_date, body = excluded.body,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = d.db.ExecContext(ctx, query,
		r.ID, string(r.ResourceType), coding.System, coding.Code,
		r.Project(), r.PatientID(), sortable(v.CreatedDate), string(body),
	)
	if err != nil {
		return models.Resource{}, fmt.Errorf("upsert resource: %w", err)
	}
	return r, nil
}

// FetchTrackerValues returns the resources coded in vc's system whose
// created date lies within interval, oldest first.
func (d *DB) FetchTrackerValues(ctx context.Context, vc models.ValuesContext, interval models.Interval) ([]models.Resource, error) {
	query := `
		SELECT body FROM resources
		WHERE system = ? AND created_date >= ? AND created_date <= ?
		ORDER BY created_date, rowid
	`
	rows, err := d.db.QueryContext(ctx, query, vc.System, sortable(interval.Start), sortable(interval.End))
	if err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}
	defer rows.Close()
	return scanResources(rows)
}

// ListResources returns every stored resource, oldest first, limited to one
// metric unless metricID is empty.
func (d *DB) ListResources(ctx context.Context, metricID string) ([]models.Resource, error) {
	query := `SELECT body FROM resources`
	var args []any
	if metricID != "" {
		query += ` WHERE code = ?`
		args = append(args, metricID)
	}
	query += ` ORDER BY created_date, rowid`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()
	return scanResources(rows)
}

// GetResource finds a resource by id or unambiguous id prefix.
func (d *DB) GetResource(ctx context.Context, idOrPrefix string) (models.Resource, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT body FROM resources WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, idOrPrefix, idOrPrefix)
	if err != nil {
		return models.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	defer rows.Close()

	found, err := scanResources(rows)
	if err != nil {
		return models.Resource{}, err
	}
	for _, r := range found {
		if r.ID == idOrPrefix {
			return r, nil
		}
	}
	switch len(found) {
	case 0:
		return models.Resource{}, fmt.Errorf("resource %s: %w", idOrPrefix, remote.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.Resource{}, fmt.Errorf("ambiguous prefix %s: matches multiple resources", idOrPrefix)
	}
}

// DeleteTrackerResource removes a resource, reporting whether it existed.
func (d *DB) DeleteTrackerResource(ctx context.Context, rt models.ResourceType, id string) (bool, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ? AND resource_type = ?", id, string(rt))
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}
	return affected > 0, nil
}

func scanResources(rows *sql.Rows) ([]models.Resource, error) {
	var out []models.Resource
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		var r models.Resource
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutOntology stores the ontology forest below code.
func (d *DB) PutOntology(ctx context.Context, code string, forest []models.CodedRelationship) error {
	body, err := json.Marshal(forest)
	if err != nil {
		return fmt.Errorf("encode ontology: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO ontologies (code, forest) VALUES (?, ?) ON CONFLICT(code) DO UPDATE SET forest = excluded.forest`,
		code, string(body))
	if err != nil {
		return fmt.Errorf("put ontology: %w", err)
	}
	return nil
}

// FetchOntology returns the forest below code, empty when none is stored.
func (d *DB) FetchOntology(ctx context.Context, code string) ([]models.CodedRelationship, error) {
	var body string
	err := d.db.QueryRowContext(ctx, `SELECT forest FROM ontologies WHERE code = ?`, code).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.CodedRelationship{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ontology: %w", err)
	}
	var forest []models.CodedRelationship
	if err := json.Unmarshal([]byte(body), &forest); err != nil {
		return nil, fmt.Errorf("decode ontology: %w", err)
	}
	return forest, nil
}

// ontologies returns every stored forest by code.
func (d *DB) ontologies(ctx context.Context) (map[string][]models.CodedRelationship, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT code, forest FROM ontologies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list ontologies: %w", err)
	}
	defer rows.Close()

	out := map[string][]models.CodedRelationship{}
	for rows.Next() {
		var code, body string
		if err := rows.Scan(&code, &body); err != nil {
			return nil, fmt.Errorf("scan ontology: %w", err)
		}
		var forest []models.CodedRelationship
		if err := json.Unmarshal([]byte(body), &forest); err != nil {
			return nil, fmt.Errorf("decode ontology %s: %w", code, err)
		}
		out[code] = forest
	}
	return out, rows.Err()
}
