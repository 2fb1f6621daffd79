// ABOUTME: CLI command for quick adding tracker values.
// ABOUTME: Records one value, optionally categorized, with the unit's quick add amount.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var (
	addCategory string
	addDay      string
)

var addCmd = &cobra.Command{
	Use:     "add <tracker> [amount]",
	Aliases: []string{"a"},
	Short:   "Quick add a value",
	Long: `Record one new value for a tracker.

Without an amount, the preferred unit's quick add amount is used (usually
one serving). Amounts are in the tracker's preferred unit and are read in
your configured language.

Categories come from the tracker's ontology, see 'tracker ontology'. Quick
adds of one tracker are throttled to one every 800ms, and values older
than a week can't be added.

EXAMPLES:

  tracker add water
  tracker add water 2
  tracker add water -c tea
  tracker add veggies -d yesterday`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}
		day, err := s.ParseDay(addDay)
		if err != nil {
			return err
		}

		var amount *float64
		if len(args) == 2 {
			v, err := units.ParseNumber(args[1], cfg.Language)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid amount: %s", args[1])
			}
			amount = &v
		}

		var code *models.Code
		if addCategory != "" {
			code, err = s.Category(cmd.Context(), t, addCategory)
			if err != nil {
				return err
			}
		}

		v, err := s.QuickAdd(cmd.Context(), t, day, code, amount)
		if err != nil {
			return fmt.Errorf("failed to add value: %w", err)
		}

		d, err := s.Day(cmd.Context(), t, day)
		if err != nil {
			return fmt.Errorf("failed to load values: %w", err)
		}
		color.Green("✓ Added %s", t.Name)
		fmt.Println(formatValue(d, v.ID, v.CreatedDate, units.ToPreferred(v.Value, t), categoryOf(v, t), s.Location()))
		fmt.Println(" ", formatDay(d))
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "category code or name")
	addCmd.Flags().StringVarP(&addDay, "day", "d", "", "day to add to (today, yesterday, YYYY-MM-DD)")
	rootCmd.AddCommand(addCmd)
}
