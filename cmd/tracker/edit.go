// ABOUTME: CLI command for editing one tracker value.
// ABOUTME: Changes amount or category; saving an amount of zero deletes the value.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/sync"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var (
	editValue    float64
	editStep     int
	editCategory string
	editDay      string
)

var editCmd = &cobra.Command{
	Use:     "edit <tracker> <id>",
	Aliases: []string{"e"},
	Short:   "Edit a tracker value",
	Long: `Edit one value of a tracker by its id or id prefix.

The id prefix is shown by 'tracker values <tracker>'. The value must have
been recorded on --day (today by default).

  --value      new amount in the preferred unit; 0 deletes the value
  --step       add or remove steps of the unit's step amount
  --category   new category code or name; naming the current sub-category
               again clears it

Nothing is written when the edit leaves the value as it was.

EXAMPLES:

  tracker edit water abc123 --value 2
  tracker edit water abc123 --step -1
  tracker edit water abc123 -c juice -d yesterday`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}
		day, err := s.ParseDay(editDay)
		if err != nil {
			return err
		}

		opts := session.EditOptions{Step: editStep, Category: editCategory}
		if cmd.Flags().Changed("value") {
			opts.Value = &editValue
		}

		result, err := s.Edit(cmd.Context(), t, day, args[1], opts)
		if err != nil {
			return fmt.Errorf("failed to edit value: %w", err)
		}

		switch result.Outcome {
		case sync.Unchanged:
			fmt.Println("Value unchanged.")
			return nil
		case sync.Deleted:
			color.Yellow("✗ Deleted %s value", t.Name)
			fmt.Printf("  %s\n", color.New(color.Faint).Sprint(args[1]))
			return nil
		}

		d, err := s.Day(cmd.Context(), t, day)
		if err != nil {
			return fmt.Errorf("failed to load values: %w", err)
		}
		v := result.Value
		color.Green("✓ Saved %s value", t.Name)
		fmt.Println(formatValue(d, v.ID, v.CreatedDate, units.ToPreferred(v.Value, t), categoryOf(v, t), s.Location()))
		return nil
	},
}

func init() {
	editCmd.Flags().Float64Var(&editValue, "value", 0, "new amount in the preferred unit")
	editCmd.Flags().IntVar(&editStep, "step", 0, "steps to add, negative to remove")
	editCmd.Flags().StringVarP(&editCategory, "category", "c", "", "category code or name")
	editCmd.Flags().StringVarP(&editDay, "day", "d", "", "day the value was recorded (today, yesterday, YYYY-MM-DD)")
	rootCmd.AddCommand(editCmd)
}
