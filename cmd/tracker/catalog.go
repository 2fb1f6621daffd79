// ABOUTME: CLI commands for the tracker catalog of the local database.
// ABOUTME: Imports tracker definitions and ontologies from a YAML file.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the local tracker catalog",
	Long: `Manage the trackers and ontologies of the local database.

The catalog is the list of trackers you can install. The http backend
serves its own catalog, so these commands need the local backend.`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import trackers from a YAML catalog",
	Long: `Import tracker definitions and category ontologies from a YAML file.

Existing trackers with the same id are updated; installs are kept.
Trackers are public unless they set public: false.

FORMAT:

  trackers:
    - id: water
      name: Water
      resource_type: Observation
      system: http://lifeomic.com/fhir/track-tile-value
      code: water
      units:
        - unit: glass
          display: glasses
          default: true
          target: 8
  ontologies:
    water:
      - system: http://example.com/drinks
        code: drinks
        specialized_by:
          - {system: http://example.com/drinks, code: tea, display: Tea}

EXAMPLES:

  tracker catalog import trackers.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		catalog, err := storage.ParseCatalog(data)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.ImportCatalog(cmd.Context(), catalog); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported %d trackers and %d ontologies", len(catalog.Trackers), len(catalog.Ontologies))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
