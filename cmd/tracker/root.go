// ABOUTME: Root Cobra command for tracker CLI.
// ABOUTME: Loads config and logging, and opens the session and stores commands ask for.
package main

import (
	"fmt"
	"io"

	"github.com/harperreed/tracker/internal/config"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/remote"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	sess    *session.Session
	db      *storage.DB
	closers []io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Daily trackers with categorized values",
	Long: `Tracker is a CLI tool for daily trackers: water, coffee, vegetables, sleep,
anything you count per day against a target.

TRACKERS:

  The catalog lists every tracker. Install the ones you want to follow,
  pick a unit and a daily target, and put them in your preferred order.

  $ tracker trackers                    # Show the catalog
  $ tracker install water --target 8    # Follow a tracker
  $ tracker reorder coffee water        # Coffee first, then water

VALUES:

  $ tracker add water                   # Quick add one serving
  $ tracker add water -c tea            # Quick add with a category
  $ tracker set water 6                 # Set today's total
  $ tracker values                      # Today's totals
  $ tracker values water -n 7           # Last week of water
  $ tracker edit water abc123 --value 2 # Change one value
  $ tracker delete water abc123         # Remove one value

BACKENDS:

  Values live in a local SQLite database by default. Point the tool at a
  tracker API by setting api_url and then backend http with
  'tracker config set', or set TRACKER_API_URL. 'tracker serve' exposes the local database over the
  same API.

MCP INTEGRATION:

  Run 'tracker mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants.

  {
    "mcpServers": {
      "tracker": { "command": "tracker", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  Trackers and values are stored at ~/.local/share/tracker/tracker.db.
  Recently used categories are kept next to it, or in Charm Cloud with
  'tracker config set recents charm'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		logging.Init(cfg.LoggingConfig())
		return nil
	},
}

// Execute runs the root command and releases whatever it opened.
func Execute() error {
	defer closeAll()
	return rootCmd.Execute()
}

// openStore opens the local database. Commands that read or write the
// database file directly need the local backend.
func openStore() (*storage.DB, error) {
	if db != nil {
		return db, nil
	}
	if cfg.GetBackend() != config.BackendLocal {
		return nil, fmt.Errorf("this command needs the %q backend, configured backend is %q", config.BackendLocal, cfg.GetBackend())
	}
	opened, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db = opened
	closers = append(closers, opened)
	return db, nil
}

func openBackend() (remote.Backend, error) {
	if cfg.GetBackend() == config.BackendLocal {
		local, err := openStore()
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	return cfg.OpenBackend()
}

// openSession opens the configured backend and recents store once per
// command run.
func openSession() (*session.Session, error) {
	if sess != nil {
		return sess, nil
	}

	backend, err := openBackend()
	if err != nil {
		return nil, err
	}

	var store recent.Store
	if opened, err := cfg.OpenRecents(); err != nil {
		logging.Warn().Err(err).Str("recents", cfg.GetRecents()).Msg("recent values unavailable")
	} else {
		store = opened
		closers = append(closers, opened)
	}

	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	sess = session.New(backend, store, opts)
	return sess, nil
}

// findTracker opens the session and resolves ref.
func findTracker(cmd *cobra.Command, ref string) (*session.Session, models.Tracker, error) {
	s, err := openSession()
	if err != nil {
		return nil, models.Tracker{}, err
	}
	t, err := s.Find(cmd.Context(), ref)
	if err != nil {
		return nil, models.Tracker{}, err
	}
	return s, t, nil
}

func closeAll() {
	if sess != nil {
		sess.Close()
		sess = nil
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logging.Warn().Err(err).Msg("close failed")
		}
	}
	closers = nil
	db = nil
}
