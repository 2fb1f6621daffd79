// ABOUTME: Tracker catalog and install operations for SQLite storage.
// ABOUTME: Installs get a fresh metric id the first time a tracker is installed.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

const trackerColumns = `
	t.id, t.name, t.color, t.icon, t.description, t.account, t.life_points,
	t.resource_type, t.system, t.code, t.units,
	i.metric_id, i.unit, i.target, i.sort_order
`

// CreateTracker adds or replaces a catalog tracker. Public trackers are
// listed only when public trackers are requested.
func (d *DB) CreateTracker(ctx context.Context, t models.Tracker, public bool) error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("create tracker: id and name are required")
	}
	if !t.ResourceType.IsValid() {
		return fmt.Errorf("create tracker %s: invalid resource type %q", t.ID, t.ResourceType)
	}
	if len(t.Units) == 0 {
		return fmt.Errorf("create tracker %s: at least one unit is required", t.ID)
	}
	if t.System == "" {
		t.System = models.TrackerCodeSystem
	}
	if t.Code == "" {
		t.Code = t.ID
	}

	units, err := json.Marshal(t.Units)
	if err != nil {
		return fmt.Errorf("encode units: %w", err)
	}

	query := `
		INSERT INTO trackers (id, name, color, icon, description, account, life_points, resource_type, system, code, units, public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, color = excluded.color, icon = excluded.icon,
			description = excluded.description, account = excluded.account,
			life_points = excluded.life_points, resource_type = excluded.resource_type,
			system = excluded.system, code = excluded.code, units = excluded.units,
			public = excluded.public
	`
	_, err = d.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Color, t.Icon, t.Description, t.Account, t.LifePoints,
		string(t.ResourceType), t.System, t.Code, string(units), public,
	)
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}
	return nil
}

// FetchTrackers lists custom and installed trackers, plus the public
// catalog when includePublic is set.
func (d *DB) FetchTrackers(ctx context.Context, includePublic bool) ([]models.Tracker, error) {
	query := `SELECT ` + trackerColumns + `
		FROM trackers t
		LEFT JOIN installs i ON i.tracker_id = t.id
		WHERE ? OR t.public = 0 OR i.metric_id IS NOT NULL
		ORDER BY t.name
	`
	rows, err := d.db.QueryContext(ctx, query, includePublic)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	defer rows.Close()

	var trackers []models.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		trackers = append(trackers, t)
	}
	return trackers, rows.Err()
}

// GetTracker finds a tracker by id, metric id or unambiguous id prefix.
func (d *DB) GetTracker(ctx context.Context, idOrPrefix string) (models.Tracker, error) {
	query := `SELECT ` + trackerColumns + `
		FROM trackers t
		LEFT JOIN installs i ON i.tracker_id = t.id
		WHERE t.id = ? OR i.metric_id = ?
	`
	t, err := scanTracker(d.db.QueryRowContext(ctx, query, idOrPrefix, idOrPrefix))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return models.Tracker{}, err
	}

	metricID, err := d.ResolveMetricID(ctx, idOrPrefix)
	if err != nil {
		return models.Tracker{}, err
	}
	return scanTracker(d.db.QueryRowContext(ctx, query, metricID, metricID))
}

// ResolveMetricID finds the full metric id from a prefix.
func (d *DB) ResolveMetricID(ctx context.Context, idOrPrefix string) (string, error) {
	// If it looks like a full UUID, use it directly
	if _, err := uuid.Parse(idOrPrefix); err == nil {
		return idOrPrefix, nil
	}

	// Search by prefix
	query := `SELECT metric_id FROM installs WHERE metric_id LIKE ? || '%'`
	rows, err := d.db.QueryContext(ctx, query, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve metric ID: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan metric ID: %w", err)
		}
		matches = append(matches, id)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("tracker %s: %w", idOrPrefix, remote.ErrNotFound)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous prefix %s: matches multiple installs", idOrPrefix)
	}

	return matches[0], nil
}

// UpsertTracker updates the install addressed by metricID. When metricID
// names a catalog tracker instead, that tracker's install is updated or a
// new one is created.
func (d *DB) UpsertTracker(ctx context.Context, metricID string, settings models.InstalledMetricSettings) (models.BulkInstalledMetricSettings, error) {
	if err := d.validate.Struct(settings); err != nil {
		return models.BulkInstalledMetricSettings{}, fmt.Errorf("validate settings: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return models.BulkInstalledMetricSettings{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	resolved, err := installFor(ctx, tx, metricID)
	if err != nil {
		return models.BulkInstalledMetricSettings{}, err
	}

	if resolved == "" {
		resolved = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO installs (metric_id, tracker_id, unit, target, sort_order) VALUES (?, ?, ?, ?, ?)`,
			resolved, metricID, settings.Unit, settings.Target, settings.Order)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE installs SET unit = ?, target = ?, sort_order = ? WHERE metric_id = ?`,
			settings.Unit, settings.Target, settings.Order, resolved)
	}
	if err != nil {
		return models.BulkInstalledMetricSettings{}, fmt.Errorf("save install: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.BulkInstalledMetricSettings{}, fmt.Errorf("commit install: %w", err)
	}
	return models.BulkInstalledMetricSettings{MetricID: resolved, InstalledMetricSettings: settings}, nil
}

// installFor returns the metric id addressed by id, or "" when id names an
// uninstalled catalog tracker.
func installFor(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var metricID string
	err := tx.QueryRowContext(ctx,
		`SELECT metric_id FROM installs WHERE metric_id = ? OR tracker_id = ?`, id, id,
	).Scan(&metricID)
	if err == nil {
		return metricID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find install: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM trackers WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("find tracker: %w", err)
	}
	if exists == 0 {
		return "", fmt.Errorf("tracker %s: %w", id, remote.ErrNotFound)
	}
	return "", nil
}

// UpsertTrackers updates many existing installs in one transaction.
func (d *DB) UpsertTrackers(ctx context.Context, settings []models.BulkInstalledMetricSettings) error {
	for _, s := range settings {
		if err := d.validate.Struct(s); err != nil {
			return fmt.Errorf("validate settings %s: %w", s.MetricID, err)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range settings {
		result, err := tx.ExecContext(ctx,
			`UPDATE installs SET unit = ?, target = ?, sort_order = ? WHERE metric_id = ?`,
			s.Unit, s.Target, s.Order, s.MetricID)
		if err != nil {
			return fmt.Errorf("update install %s: %w", s.MetricID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update install %s: %w", s.MetricID, err)
		}
		if affected == 0 {
			return fmt.Errorf("install %s: %w", s.MetricID, remote.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit installs: %w", err)
	}
	return nil
}

// UninstallTracker removes an install. Recorded values are kept.
func (d *DB) UninstallTracker(ctx context.Context, metricID string) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM installs WHERE metric_id = ?", metricID)
	if err != nil {
		return fmt.Errorf("uninstall tracker: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("uninstall tracker: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("install %s: %w", metricID, remote.ErrNotFound)
	}
	return nil
}

// RestoreInstall writes an install with a known metric id, as found in an
// export.
func (d *DB) RestoreInstall(ctx context.Context, t models.Tracker) error {
	s := models.BulkSettings(t)
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO installs (metric_id, tracker_id, unit, target, sort_order) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(metric_id) DO UPDATE SET unit = excluded.unit, target = excluded.target, sort_order = excluded.sort_order
	`, s.MetricID, t.ID, s.Unit, s.Target, s.Order)
	if err != nil {
		return fmt.Errorf("restore install %s: %w", s.MetricID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTracker scans a tracker row joined with its optional install.
func scanTracker(row scanner) (models.Tracker, error) {
	var t models.Tracker
	var resourceType, units string
	var color, icon, description, account sql.NullString
	var metricID, unit sql.NullString
	var target sql.NullFloat64
	var order sql.NullInt64

	err := row.Scan(
		&t.ID, &t.Name, &color, &icon, &description, &account, &t.LifePoints,
		&resourceType, &t.System, &t.Code, &units,
		&metricID, &unit, &target, &order,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, fmt.Errorf("tracker: %w", remote.ErrNotFound)
		}
		return t, fmt.Errorf("scan tracker: %w", err)
	}

	t.Color = color.String
	t.Icon = icon.String
	t.Description = description.String
	t.Account = account.String
	t.ResourceType = models.ResourceType(resourceType)
	if err := json.Unmarshal([]byte(units), &t.Units); err != nil {
		return t, fmt.Errorf("decode units of %s: %w", t.ID, err)
	}

	if metricID.Valid {
		t.WithInstall(metricID.String, models.InstalledMetricSettings{
			Unit:   unit.String,
			Target: target.Float64,
			Order:  int(order.Int64),
		})
	}
	return t, nil
}
