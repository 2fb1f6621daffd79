// ABOUTME: CLI command for ordering installed trackers.
// ABOUTME: Moves the named trackers to the front and stores the new positions.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <tracker>...",
	Short: "Reorder installed trackers",
	Long: `Move the named trackers to the front of your installed trackers, in the
order given. Trackers you don't name keep their relative order after them.

EXAMPLES:

  tracker reorder coffee water   # coffee first, water second`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		ordered, err := s.Reorder(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("failed to reorder trackers: %w", err)
		}

		color.Green("✓ Reordered trackers")
		for i, t := range ordered {
			fmt.Printf("  %s %s\n", color.New(color.Faint).Sprintf("%2d.", i+1), t.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reorderCmd)
}
