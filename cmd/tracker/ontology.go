// ABOUTME: CLI commands for a tracker's categories and recently used values.
// ABOUTME: Covers ontology and recent.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var ontologyCmd = &cobra.Command{
	Use:     "ontology <tracker>",
	Aliases: []string{"categories"},
	Short:   "List a tracker's categories",
	Long: `List the categories values of a tracker can be recorded under.

Use the code or the name with 'tracker add -c' and 'tracker edit -c'.

EXAMPLES:

  tracker ontology water`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}

		codes, err := s.Categories(cmd.Context(), t)
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
		if len(codes) == 0 {
			fmt.Printf("%s has no categories.\n", t.Name)
			return nil
		}

		faint := color.New(color.Faint)
		for _, c := range codes {
			fmt.Printf("%s %s\n", padRight(c.Code, 20), c.Display)
			if c.System != "" {
				fmt.Printf("  %s\n", faint.Sprint(c.System))
			}
		}
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent <tracker>",
	Short: "Show recently used categories",
	Long: `Show the categories and amounts most recently recorded for a tracker,
newest first. At most five are kept per tracker.

EXAMPLES:

  tracker recent water`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, t, err := findTracker(cmd, args[0])
		if err != nil {
			return err
		}

		values, err := s.Recent(cmd.Context(), t)
		if err != nil {
			return fmt.Errorf("failed to load recent values: %w", err)
		}
		if len(values) == 0 {
			fmt.Println("No recent values.")
			return nil
		}

		unit, _ := units.PreferredUnitType(t)
		for _, v := range values {
			name := v.Code.Display
			if name == "" {
				name = v.Code.Code
			}
			value := units.ToPreferred(v.Value, t)
			fmt.Printf("%s %g %s\n", padRight(name, 20), value, units.Display(value, unit))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ontologyCmd)
	rootCmd.AddCommand(recentCmd)
}
