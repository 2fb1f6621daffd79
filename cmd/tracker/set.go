// ABOUTME: CLI command for setting a tracker's day total.
// ABOUTME: Splits the difference over the day's values the way the detail view does.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var (
	setDay      string
	setRelative bool
)

var setCmd = &cobra.Command{
	Use:   "set <tracker> <total>",
	Short: "Set a day's total",
	Long: `Set the total of a tracker for a day, in its preferred unit.

Raising the total grows the day's first value. Lowering it takes the
difference from the first value onwards: each value the decrease empties
is deleted and the next one shrinks by what is left. With --relative the
number is added to the current total instead, and may be negative.

EXAMPLES:

  tracker set water 6
  tracker set water 0 -d yesterday     # Clear yesterday
  tracker set water --relative -- -1   # One less than now`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}
		day, err := s.ParseDay(setDay)
		if err != nil {
			return err
		}

		value, err := units.ParseNumber(args[1], cfg.Language)
		if err != nil {
			return fmt.Errorf("invalid total: %s", args[1])
		}

		var total float64
		if setRelative {
			total, err = s.AddToTotal(cmd.Context(), t, day, value)
		} else {
			total, err = s.SetTotal(cmd.Context(), t, day, value)
		}
		if err != nil {
			return fmt.Errorf("failed to set total: %w", err)
		}

		unit, _ := units.PreferredUnitType(t)
		color.Green("✓ %s: %g %s", t.Name, total, units.Display(total, unit))
		return nil
	},
}

func init() {
	setCmd.Flags().StringVarP(&setDay, "day", "d", "", "day to change (today, yesterday, YYYY-MM-DD)")
	setCmd.Flags().BoolVarP(&setRelative, "relative", "r", false, "add to the current total")
	rootCmd.AddCommand(setCmd)
}
