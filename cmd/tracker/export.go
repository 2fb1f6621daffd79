// ABOUTME: CLI commands for exporting and importing tracker data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/session"
	"github.com/spf13/cobra"
)

var (
	exportOutput  string
	exportTracker string
	exportSince   string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export tracker data",
	Long: `Export the local database in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o    Write to file instead of stdout
  --tracker, -t   Only one tracker (markdown only)
  --since         Only include values since this date (markdown only)

EXAMPLES:

  tracker export json                        # Export all data as JSON
  tracker export json -o backup.json         # Save to file
  tracker export yaml                        # Export as YAML
  tracker export markdown --tracker water    # Export water as Markdown
  tracker export markdown --since 2024-01-01 # Export values from 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		ctx := cmd.Context()

		store, err := openStore()
		if err != nil {
			return err
		}

		var data []byte
		switch format {
		case "json":
			data, err = store.ExportJSON(ctx)
		case "yaml":
			data, err = store.ExportYAML(ctx)
		case "markdown":
			var metricID string
			if exportTracker != "" {
				t, err := store.GetTracker(ctx, exportTracker)
				if err != nil {
					return err
				}
				if !t.IsInstalled() {
					return fmt.Errorf("%s is not installed", t.Name)
				}
				metricID = t.MetricID
			}
			var since *time.Time
			if exportSince != "" {
				t, err := time.ParseInLocation(session.DateLayout, exportSince, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
				since = &t
			}
			var md string
			md, err = store.ExportMarkdown(ctx, metricID, since)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tracker data from JSON",
	Long: `Import trackers, installs, values and ontologies from a JSON backup file.

This imports a file written by 'tracker export json'. Entries with the
same id are overwritten.

EXAMPLES:

  tracker import backup.json               # Import from file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.ImportJSON(cmd.Context(), data); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported from %s", filename)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVarP(&exportTracker, "tracker", "t", "", "only this tracker (markdown only)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include values since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
