// ABOUTME: CLI command for deleting tracker values.
// ABOUTME: Supports deletion by full ID or ID prefix within one day.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var deleteDay string

var deleteCmd = &cobra.Command{
	Use:     "delete <tracker> <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a tracker value",
	Long: `Delete one value of a tracker by its ID or ID prefix.

You can use either the full ID or just the first few characters (prefix).
The ID prefix is shown in the first column of 'tracker values <tracker>'.

EXAMPLES:

  tracker delete water abc12345          # Delete by 8-char prefix
  tracker rm water abc1                  # Short prefix (if unique)
  tracker delete water abc1 -d yesterday # A value recorded yesterday

CAUTION:

  This permanently deletes the value. There is no undo.
  If the prefix matches multiple values, an error is returned.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}
		day, err := s.ParseDay(deleteDay)
		if err != nil {
			return err
		}

		v, err := s.Delete(cmd.Context(), t, day, args[1])
		if err != nil {
			return fmt.Errorf("failed to delete value: %w", err)
		}

		unit, _ := units.PreferredUnitType(t)
		value := units.ToPreferred(v.Value, t)
		color.Yellow("✗ Deleted %s value", t.Name)
		fmt.Printf("  %s %g %s\n",
			color.New(color.Faint).Sprint(shortID(v.ID)),
			value, units.Display(value, unit))
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteDay, "day", "d", "", "day the value was recorded (today, yesterday, YYYY-MM-DD)")
	rootCmd.AddCommand(deleteCmd)
}
