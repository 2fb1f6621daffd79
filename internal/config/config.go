// ABOUTME: Tracker configuration management with backend selection.
// ABOUTME: Handles settings, env overrides, validation and the backend and recents factories.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/charm"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/remote"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/harperreed/tracker/internal/sync"
)

// Backends and recents stores accepted in the config file.
const (
	BackendLocal  = "local"
	BackendHTTP   = "http"
	RecentsBadger = "badger"
	RecentsCharm  = "charm"
)

// Environment overrides.
const (
	EnvAPIURL = "TRACKER_API_URL"
	EnvToken  = "TRACKER_TOKEN"
	EnvEnv    = "TRACKER_ENV"
)

// Config stores tracker tool configuration.
type Config struct {
	// Backend selects where trackers and values live: "local" (SQLite,
	// default) or "http" (a tracker API at APIURL).
	Backend string `json:"backend,omitempty" validate:"omitempty,oneof=local http"`
	APIURL  string `json:"api_url,omitempty" validate:"required_if=Backend http,omitempty,url"`
	Token   string `json:"token,omitempty"`

	Account   string `json:"account,omitempty"`
	Project   string `json:"project,omitempty"`
	PatientID string `json:"patient_id,omitempty"`

	IncludePublic bool   `json:"include_public,omitempty"`
	Language      string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	Timezone      string `json:"timezone,omitempty" validate:"omitempty,timezone"`

	// DataDir is the root directory for data storage. Supports ~ expansion.
	// Defaults to ~/.local/share/tracker.
	DataDir string `json:"data_dir,omitempty"`

	// Recents selects where recently used categories are kept: "badger"
	// (default, in DataDir) or "charm" (synced through Charm Cloud).
	Recents   string `json:"recents,omitempty" validate:"omitempty,oneof=badger charm"`
	CharmHost string `json:"charm_host,omitempty" validate:"omitempty,hostname_port|hostname"`

	Development bool   `json:"development,omitempty"`
	LogLevel    string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error disabled"`
	LogFormat   string `json:"log_format,omitempty" validate:"omitempty,oneof=json console"`
}

var validate = validator.New()

// GetBackend returns the configured backend, defaulting to "local".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendLocal
	}
	return c.Backend
}

// GetRecents returns the configured recents store, defaulting to "badger".
func (c *Config) GetRecents() string {
	if c.Recents == "" {
		return RecentsBadger
	}
	return c.Recents
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "tracker.db")
}

// IsDevelopment reports whether errors should surface instead of only
// being logged.
func (c *Config) IsDevelopment() bool {
	return c.Development || strings.EqualFold(os.Getenv(EnvEnv), "development")
}

// Location returns the configured time zone, defaulting to local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}

// ApplyEnv overrides file settings from the environment. A TRACKER_API_URL
// selects the http backend unless one was configured.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
		if c.Backend == "" {
			c.Backend = BackendHTTP
		}
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Token = v
	}
	if strings.EqualFold(os.Getenv(EnvEnv), "development") {
		c.Development = true
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoggingConfig returns the logger settings for this config.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if c.LogLevel != "" {
		cfg.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Format = c.LogFormat
	}
	if c.IsDevelopment() {
		cfg.Caller = true
	}
	return cfg
}

// SessionOptions returns the session settings for this config.
func (c *Config) SessionOptions() (session.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Account:       sync.Account{Project: c.Project, PatientID: c.PatientID},
		Location:      loc,
		IncludePublic: c.IncludePublic,
		Development:   c.IsDevelopment(),
		Language:      c.Language,
	}, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStore opens the local SQLite datastore.
func (c *Config) OpenStore() (*storage.DB, error) {
	return storage.Open(c.DBPath())
}

// OpenBackend creates the tracker backend for the configured backend.
// Callers close the result when it implements io.Closer.
func (c *Config) OpenBackend() (remote.Backend, error) {
	switch c.GetBackend() {
	case BackendLocal:
		db, err := c.OpenStore()
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendHTTP:
		if c.APIURL == "" {
			return nil, fmt.Errorf("backend %q needs api_url or %s", BackendHTTP, EnvAPIURL)
		}
		return remote.NewClient(remote.ClientConfig{
			BaseURL:   c.APIURL,
			Token:     c.Token,
			Account:   c.Account,
			Project:   c.Project,
			PatientID: c.PatientID,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.Backend)
	}
}

// OpenRecents opens the configured recently used values store.
func (c *Config) OpenRecents() (recent.Store, error) {
	switch c.GetRecents() {
	case RecentsBadger:
		store, err := recent.OpenBadger(filepath.Join(c.GetDataDir(), "recents"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case RecentsCharm:
		client, err := charm.InitClient(c.CharmHost)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown recents store: %q", c.Recents)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "tracker", "config.json")
}

// ReadFile reads the config file as written, without environment
// overrides. A missing file is an empty config.
func ReadFile() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := ReadFile()
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}

	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
