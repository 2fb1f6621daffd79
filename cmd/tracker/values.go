// ABOUTME: CLI command for showing tracker values by day.
// ABOUTME: Prints totals against targets and the individual values behind them.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var (
	valuesDay  string
	valuesDays int
)

var valuesCmd = &cobra.Command{
	Use:     "values [tracker]",
	Aliases: []string{"v", "today"},
	Short:   "Show tracker values",
	Long: `Show tracker totals and values for a day.

Without a tracker, shows the totals of every installed tracker. With a
tracker, shows each value recorded that day with its id prefix and
category. Use the id prefix with edit and delete.

OUTPUT FORMAT:

  NAME  DAY  TOTAL/TARGET UNIT  (✓ when the target is met)
    ID  TIME  VALUE  CATEGORY

EXAMPLES:

  tracker values                      # Today's totals
  tracker values --day yesterday      # Yesterday's totals
  tracker values water                # Today's water values
  tracker values water -n 7           # The last 7 days of water
  tracker values water -d 2024-03-10  # A specific day`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		day, err := s.ParseDay(valuesDay)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			summary, err := s.Summary(cmd.Context(), day)
			if err != nil {
				return fmt.Errorf("failed to load values: %w", err)
			}
			if len(summary) == 0 {
				fmt.Println("No trackers installed. Run 'tracker install <tracker>' to start.")
				return nil
			}
			for _, d := range summary {
				fmt.Println(formatDay(d))
			}
			return nil
		}

		t, err := s.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		days := valuesDays
		if days < 1 {
			days = 1
		}
		for i := days - 1; i >= 0; i-- {
			d, err := s.Day(cmd.Context(), t, day.AddDate(0, 0, -i))
			if err != nil {
				return fmt.Errorf("failed to load values: %w", err)
			}
			fmt.Println(formatDay(d))
			for _, v := range d.Values {
				fmt.Println(formatValue(d, v.ID, v.CreatedDate, units.ToPreferred(v.Value, t), categoryOf(v, t), s.Location()))
			}
		}
		return nil
	},
}

func formatDay(d session.Day) string {
	met := ""
	if d.Target > 0 && d.Total >= d.Target {
		met = color.GreenString(" ✓")
	}
	return fmt.Sprintf("%s %s %g/%g %s%s",
		padRight(d.Tracker.Name, 20),
		color.New(color.Faint).Sprint(d.Day.Format(session.DateLayout)),
		d.Total, d.Target,
		units.Display(d.Total, d.Unit),
		met)
}

func formatValue(d session.Day, id string, at time.Time, value float64, category string, loc *time.Location) string {
	faint := color.New(color.Faint)
	line := fmt.Sprintf("  %s %s %g %s",
		faint.Sprint(shortID(id)),
		faint.Sprint(at.In(loc).Format("15:04")),
		value,
		units.Display(value, d.Unit))
	if category != "" {
		line += faint.Sprintf("  %s", truncate(category, 30))
	}
	return line
}

// categoryOf returns the display of v's category, or "" for an
// uncategorized value.
func categoryOf(v models.TrackerValue, t models.Tracker) string {
	first := v.Code.First()
	if first == nil || first.Equal(t.Coding()) {
		return ""
	}
	if first.Display != "" {
		return first.Display
	}
	return first.Code
}

func init() {
	valuesCmd.Flags().StringVarP(&valuesDay, "day", "d", "", "day to show (today, yesterday, YYYY-MM-DD)")
	valuesCmd.Flags().IntVarP(&valuesDays, "days", "n", 1, "number of days ending at --day")
	rootCmd.AddCommand(valuesCmd)
}
