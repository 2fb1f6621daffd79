// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines tables for trackers, installs, value resources and ontologies.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trackers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT,
		icon TEXT,
		description TEXT,
		account TEXT,
		life_points INTEGER NOT NULL DEFAULT 0,
		resource_type TEXT NOT NULL,
		system TEXT NOT NULL,
		code TEXT NOT NULL,
		units TEXT NOT NULL,
		public INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS installs (
		metric_id TEXT PRIMARY KEY,
		tracker_id TEXT NOT NULL UNIQUE,
		unit TEXT NOT NULL,
		target REAL NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (tracker_id) REFERENCES trackers(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		resource_type TEXT NOT NULL,
		system TEXT NOT NULL,
		code TEXT NOT NULL,
		project TEXT,
		patient_id TEXT,
		created_date TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ontologies (
		code TEXT PRIMARY KEY,
		forest TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_system_created ON resources(system, created_date);
	CREATE INDEX IF NOT EXISTS idx_resources_code ON resources(code);
	`

	_, err := d.db.Exec(schema)
	return err
}
