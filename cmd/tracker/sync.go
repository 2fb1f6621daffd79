// ABOUTME: CLI commands for the Charm-synced recents store.
// ABOUTME: Supports link, unlink, status, repair, reset, and wipe operations.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/charm/kv"
	"github.com/fatih/color"
	"github.com/harperreed/tracker/internal/charm"
	"github.com/harperreed/tracker/internal/config"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync recently used categories across devices",
	Long: `Sync recently used categories across devices using Charm Cloud.

Select the charm recents store first:

  tracker config set recents charm

Your data is E2E encrypted with your SSH key before upload. Tracker values
themselves stay in the configured backend; use 'tracker serve' or the http
backend to share them.

GETTING STARTED:

  1. Link your device (creates/uses SSH key automatically):
     tracker sync link

  2. On other devices, link with the same Charm account:
     tracker sync link

  3. Check sync status:
     tracker sync status

COMMANDS:

  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm
  status      Show sync status and account info
  repair      Repair database corruption (checkpoints WAL, removes SHM, vacuums)
  reset       Reset local data and restore from cloud (destructive)
  wipe        Delete cloud and local data (destructive)

Recent values sync automatically after each add or edit.`,
}

func openCharm() (*charm.Client, error) {
	client, err := charm.InitClient(cfg.CharmHost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize charm client: %w", err)
	}
	closers = append(closers, client)
	return client, nil
}

// confirm prints prompt and reports whether the answer read from in is one
// of accept.
func confirm(in io.Reader, prompt string, accept ...string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(answer)
	for _, a := range accept {
		if answer == a {
			return true
		}
	}
	fmt.Println("Canceled.")
	return false
}

func runCharm(args ...string) error {
	if err := charm.SetHost(cfg.CharmHost); err != nil {
		return err
	}
	charmCmd := exec.Command("charm", args...)
	charmCmd.Stdin = os.Stdin
	charmCmd.Stdout = os.Stdout
	charmCmd.Stderr = os.Stderr
	return charmCmd.Run()
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to Charm",
	Long: `Link this device to your Charm account.

If you don't have a Charm account, one will be created using your SSH key.
If you already have an account, you'll be prompted to link via charm.sh.

Example:
  tracker sync link`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("link"); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}

		color.Green("\n✓ Device linked to Charm")
		if cfg.GetRecents() != config.RecentsCharm {
			color.Yellow("⚠ Recent values are kept in %s. Run 'tracker config set recents charm' to sync them.", cfg.GetRecents())
			return nil
		}

		client, err := openCharm()
		if err != nil {
			return err
		}
		if err := client.Sync(); err != nil {
			color.Yellow("⚠ Initial sync failed: %v", err)
		} else {
			color.Green("✓ Initial sync complete")
		}
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Disconnect from Charm",
	Long: `Disconnect this device from Charm.

This does not delete your local recent values.
You can link again later with 'tracker sync link'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("unlink"); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}

		color.Green("✓ Device unlinked from Charm")
		fmt.Println("Your local recent values are preserved.")
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show current sync status including:
- Charm account info
- Connection status
- Local data info`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openCharm()
		if err != nil {
			color.Yellow("Charm client not initialized: %v", err)
			fmt.Println("\nRun 'tracker sync link' to connect to Charm.")
			return nil
		}

		id, err := client.ID()
		if err != nil {
			color.Yellow("Not linked to Charm")
			fmt.Println("\nRun 'tracker sync link' to connect to Charm.")
			return nil
		}

		fmt.Println("Charm ID:", id)
		fmt.Println("Server:", charm.Host())
		fmt.Println("Recents store:", cfg.GetRecents())
		fmt.Println()

		metrics, err := client.Metrics()
		if err != nil {
			return fmt.Errorf("failed to list synced trackers: %w", err)
		}

		color.Green("✓ Connected to Charm")
		fmt.Printf("  Trackers with recent values: %d\n", len(metrics))
		if client.IsReadOnly() {
			color.Yellow("  Read-only: another process holds the database")
		}
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all cloud and local data",
	Long: `Delete all cloud backups and local recent values.

This is a DESTRUCTIVE operation. ALL synced data will be permanently deleted.
Tracker values in your backend are not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("This will PERMANENTLY DELETE all cloud backups and local recent values.")
		if !confirm(os.Stdin, "Type 'wipe' to confirm: ", "wipe") {
			return nil
		}

		if err := charm.SetHost(cfg.CharmHost); err != nil {
			return err
		}
		result, err := kv.Wipe(charm.DBName)
		if err != nil {
			return fmt.Errorf("wipe failed: %w", err)
		}

		color.Green("✓ Data wiped successfully")
		fmt.Printf("  Cloud backups deleted: %d\n", result.CloudBackupsDeleted)
		fmt.Printf("  Local files deleted: %d\n", result.LocalFilesDeleted)
		return nil
	},
}

var syncRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair database corruption",
	Long: `Repair database corruption by checkpointing WAL, removing SHM files, checking integrity, and vacuuming.

Use this when you encounter database lock errors or corruption.
Run with --force to attempt recovery even if integrity checks fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if err := charm.SetHost(cfg.CharmHost); err != nil {
			return err
		}
		fmt.Println("Repairing tracker sync database...")
		result, err := kv.Repair(charm.DBName, force)

		if result.WalCheckpointed {
			color.Green("  ✓ WAL checkpointed")
		}
		if result.ShmRemoved {
			color.Green("  ✓ SHM file removed")
		}
		if result.IntegrityOK {
			color.Green("  ✓ Integrity check passed")
		} else {
			color.Red("  ✗ Integrity check failed")
		}
		if result.Vacuumed {
			color.Green("  ✓ Database vacuumed")
		}

		if err != nil {
			if !force {
				color.Yellow("\nRun with --force to attempt recovery.")
			}
			return fmt.Errorf("repair failed: %w", err)
		}

		color.Green("\n✓ Repair complete")
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local data and restore from cloud",
	Long: `Delete local recent values and restore them from Charm Cloud.

This is a destructive operation. Local recent values will be replaced by
the cloud copy. Use this to:
- Fix sync conflicts
- Reset a device to cloud state`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("This will DELETE local recent values and restore them from cloud.")
		if !confirm(os.Stdin, "Continue? [y/N]: ", "y", "Y") {
			return nil
		}

		client, err := openCharm()
		if err != nil {
			return err
		}
		if err := client.Reset(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}

		color.Green("✓ Local data reset and restored from cloud")
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncRepairCmd)
	syncCmd.AddCommand(syncResetCmd)
	syncCmd.AddCommand(syncWipeCmd)

	syncRepairCmd.Flags().Bool("force", false, "Attempt recovery even if integrity checks fail")

	rootCmd.AddCommand(syncCmd)
}
