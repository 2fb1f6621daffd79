// ABOUTME: CLI command for listing trackers.
// ABOUTME: Shows the catalog with install state, unit, target and order.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
	"github.com/spf13/cobra"
)

var trackersInstalled bool

var trackersCmd = &cobra.Command{
	Use:     "trackers",
	Aliases: []string{"ls", "list"},
	Short:   "List trackers",
	Long: `List the tracker catalog.

OUTPUT FORMAT:

  Each line shows: ID  NAME  UNIT  TARGET  (✓ when installed)

  Installed trackers come first, in your order. Pillar trackers are listed
  in their own section.

EXAMPLES:

  tracker trackers               # Whole catalog
  tracker trackers --installed   # Only the trackers you follow`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		var trackers []models.Tracker
		if trackersInstalled {
			trackers, err = s.Installed(cmd.Context())
		} else {
			trackers, err = s.Trackers(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("failed to list trackers: %w", err)
		}

		if len(trackers) == 0 {
			fmt.Println("No trackers found.")
			return nil
		}

		pillarHeader := false
		for _, t := range trackers {
			if t.System == models.TrackerPillarCodeSystem && !pillarHeader {
				color.New(color.Bold).Println("\nPillars")
				pillarHeader = true
			}
			fmt.Println(formatTracker(t))
		}
		return nil
	},
}

func formatTracker(t models.Tracker) string {
	faint := color.New(color.Faint)

	unit, _ := units.PreferredUnitType(t)
	target := unit.Target
	if t.Target != nil {
		target = *t.Target
	}

	installed := ""
	if t.IsInstalled() {
		installed = color.GreenString(" ✓")
	}
	return fmt.Sprintf("%s %s %s %s%s",
		faint.Sprint(padRight(shortID(t.ID), 8)),
		padRight(t.Name, 20),
		padRight(unit.Unit, 10),
		faint.Sprintf("target %g", target),
		installed)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	trackersCmd.Flags().BoolVarP(&trackersInstalled, "installed", "i", false, "only installed trackers")
	rootCmd.AddCommand(trackersCmd)
}
