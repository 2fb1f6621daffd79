// ABOUTME: SQLite database connection and lifecycle management.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/harperreed/tracker/internal/remote"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	db       *sql.DB
	dbPath   string
	validate *validator.Validate
}

// Compile-time check that DB can stand in for the remote backend.
var _ remote.Backend = (*DB)(nil)

// pragmas are applied to every connection before the schema is created.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
}

// Open opens or creates a SQLite database at dbPath, creating the parent
// directory and the schema as needed. The file is readable by the owner only.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps concurrent installs from racing on the same tracker.
	conn.SetMaxOpenConns(1)

	d := &DB{db: conn, dbPath: dbPath, validate: validator.New()}
	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{"configure pragmas", d.configurePragmas},
		{"initialize schema", d.initSchema},
		// sql.Open is lazy; the file only exists once the pragmas ran.
		{"set database permissions", func() error { return os.Chmod(dbPath, 0600) }},
	} {
		if err := step.fn(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return d, nil
}

// OpenDefault opens the database at the default XDG data path.
func OpenDefault() (*DB, error) {
	return Open(DefaultDBPath())
}

// DataDir returns the default data directory under XDG_DATA_HOME.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "tracker")
}

// DefaultDBPath returns the default database path under XDG_DATA_HOME.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "tracker.db")
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) configurePragmas() error {
	for _, pragma := range pragmas {
		if _, err := d.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}
