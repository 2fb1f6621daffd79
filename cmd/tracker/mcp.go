// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for Claude integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/tracker/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to read and record your tracker values
through a standardized protocol. The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "tracker": {
        "command": "tracker",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  list_trackers       List trackers with install state and target
  install_tracker     Install a tracker or change its unit and target
  uninstall_tracker   Uninstall a tracker
  reorder_trackers    Reorder installed trackers
  get_day             Values and total of a tracker on a day
  set_total           Set a day's total
  add_to_total        Add to a day's total
  quick_add           Record one value, optionally categorized
  edit_value          Change a value's amount or category
  delete_value        Delete a value
  list_categories     Categories of a tracker
  recent_values       Recently used categories of a tracker

AVAILABLE RESOURCES:

  tracker://today      Today's totals of every installed tracker
  tracker://trackers   The tracker catalog`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		server, err := mcp.NewServer(s)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
