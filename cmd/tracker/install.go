// ABOUTME: CLI commands for installing trackers and changing their settings.
// ABOUTME: Covers install, uninstall and target.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/session"
	"github.com/spf13/cobra"
)

var (
	installUnit   string
	installTarget string
)

var installCmd = &cobra.Command{
	Use:     "install <tracker>",
	Aliases: []string{"i"},
	Short:   "Install a tracker",
	Long: `Install a tracker, or change the unit and target of an installed one.

The tracker can be named by id, metric id, name, or a unique id prefix.
Targets are read in your configured language, so "2,5" works for German.

EXAMPLES:

  tracker install water
  tracker install water --target 8
  tracker install coffee --unit cup --target 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		t, changed, err := s.Install(cmd.Context(), args[0], session.InstallOptions{
			Unit:       installUnit,
			TargetText: installTarget,
		})
		if err != nil {
			return fmt.Errorf("failed to install tracker: %w", err)
		}

		if changed {
			color.Green("✓ Installed %s", t.Name)
		} else {
			fmt.Printf("%s is already installed with these settings.\n", t.Name)
		}
		fmt.Println(" ", formatTracker(t))
		return nil
	},
}

var targetCmd = &cobra.Command{
	Use:   "target <tracker> <value>",
	Short: "Set the daily target of a tracker",
	Long: `Set the daily target of a tracker, in its preferred unit.

Negative or unreadable targets leave the current target unchanged.
Setting a target installs the tracker when it is not installed yet.

EXAMPLES:

  tracker target water 8
  tracker target water 2,5   # with language set to de`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		t, _, err := s.Install(cmd.Context(), args[0], session.InstallOptions{TargetText: args[1]})
		if err != nil {
			return fmt.Errorf("failed to set target: %w", err)
		}

		color.Green("✓ Target updated")
		fmt.Println(" ", formatTracker(t))
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tracker>",
	Short: "Uninstall a tracker",
	Long: `Stop following a tracker. Its recorded values are kept and show up again
when the tracker is reinstalled.

EXAMPLES:

  tracker uninstall coffee`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		t, err := s.Uninstall(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to uninstall tracker: %w", err)
		}

		color.Yellow("✗ Uninstalled %s", t.Name)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVarP(&installUnit, "unit", "u", "", "unit to display values in")
	installCmd.Flags().StringVarP(&installTarget, "target", "t", "", "daily target in the chosen unit")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(uninstallCmd)
}
