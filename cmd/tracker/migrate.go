// ABOUTME: CLI command for copying a remote tracker backend into SQLite.
// ABOUTME: Pulls trackers, installs, values and ontologies from a tracker API.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateFrom   string
	migrateToken  string
	migrateDays   int
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy a tracker API into the local database",
	Long: `Copy trackers, installs, values and ontologies from a tracker API into the
local SQLite database, whatever backend is configured.

Use this to move from the http backend to the local one, or to keep an
offline copy. The source defaults to the configured api_url and token.

IMPORTANT:

  - The local database is at ~/.local/share/tracker/tracker.db
  - Existing local entries with the same id are overwritten
  - Only values from the last --days days are copied
  - Run with --dry-run first to see what would be migrated

USAGE:

  tracker migrate --dry-run                        # Preview the migration
  tracker migrate --from https://api.example.com   # Copy from another API
  tracker migrate --days 365                       # Copy a year of values`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from := migrateFrom
		if from == "" {
			from = cfg.APIURL
		}
		if from == "" {
			return fmt.Errorf("no source: pass --from or set api_url")
		}
		token := migrateToken
		if token == "" {
			token = cfg.Token
		}
		if migrateDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}

		src := remote.NewClient(remote.ClientConfig{
			BaseURL:   from,
			Token:     token,
			Account:   cfg.Account,
			Project:   cfg.Project,
			PatientID: cfg.PatientID,
		})

		var dst *storage.DB
		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()

			tmpDir, err := os.MkdirTemp("", "tracker-migrate-*")
			if err != nil {
				return fmt.Errorf("failed to create temp dir: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			dst, err = storage.Open(filepath.Join(tmpDir, "tracker.db"))
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer dst.Close()
		} else {
			var err error
			dst, err = cfg.OpenStore()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer dst.Close()
		}

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		now := models.EndOfDay(time.Now().In(loc))
		interval := models.Interval{Start: models.StartOfDay(now.AddDate(0, 0, -(migrateDays - 1))), End: now}

		summary, err := storage.MigrateData(cmd.Context(), src, dst, interval)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if migrateDryRun {
			fmt.Println("Would migrate:")
		} else {
			color.Green("✓ Migrated from %s", from)
		}
		fmt.Printf("  Trackers:   %d\n", summary.Trackers)
		fmt.Printf("  Installs:   %d\n", summary.Installs)
		fmt.Printf("  Values:     %d\n", summary.Values)
		fmt.Printf("  Ontologies: %d\n", summary.Ontologies)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "tracker API to copy from (default: api_url)")
	migrateCmd.Flags().StringVar(&migrateToken, "token", "", "bearer token for the source (default: token)")
	migrateCmd.Flags().IntVar(&migrateDays, "days", 90, "days of values to copy")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
