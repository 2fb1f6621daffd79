// ABOUTME: CLI commands for viewing and changing the config file.
// ABOUTME: Covers config show, path, set and unset.
package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/config"
	"github.com/spf13/cobra"
)

type configField struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

func stringField(p func(c *config.Config) *string) configField {
	return configField{
		get: func(c *config.Config) string { return *p(c) },
		set: func(c *config.Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func boolField(p func(c *config.Config) *bool) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *config.Config, v string) error {
			if v == "" {
				*p(c) = false
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			*p(c) = b
			return nil
		},
	}
}

var configFields = map[string]configField{
	"backend":        stringField(func(c *config.Config) *string { return &c.Backend }),
	"api_url":        stringField(func(c *config.Config) *string { return &c.APIURL }),
	"token":          stringField(func(c *config.Config) *string { return &c.Token }),
	"account":        stringField(func(c *config.Config) *string { return &c.Account }),
	"project":        stringField(func(c *config.Config) *string { return &c.Project }),
	"patient_id":     stringField(func(c *config.Config) *string { return &c.PatientID }),
	"include_public": boolField(func(c *config.Config) *bool { return &c.IncludePublic }),
	"language":       stringField(func(c *config.Config) *string { return &c.Language }),
	"timezone":       stringField(func(c *config.Config) *string { return &c.Timezone }),
	"data_dir":       stringField(func(c *config.Config) *string { return &c.DataDir }),
	"recents":        stringField(func(c *config.Config) *string { return &c.Recents }),
	"charm_host":     stringField(func(c *config.Config) *string { return &c.CharmHost }),
	"development":    boolField(func(c *config.Config) *bool { return &c.Development }),
	"log_level":      stringField(func(c *config.Config) *string { return &c.LogLevel }),
	"log_format":     stringField(func(c *config.Config) *string { return &c.LogFormat }),
}

func configKeys() []string {
	keys := make([]string, 0, len(configFields))
	for k := range configFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupField(key string) (configField, error) {
	f, ok := configFields[key]
	if !ok {
		return configField{}, fmt.Errorf("unknown config key: %s\nValid keys: %s", key, strings.Join(configKeys(), ", "))
	}
	return f, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `View and change the settings in the config file.

The file lives at $XDG_CONFIG_HOME/tracker/config.json. TRACKER_API_URL,
TRACKER_TOKEN and TRACKER_ENV override it at run time; these commands show
and change the file itself.

KEYS:

  backend          local (default) or http
  api_url          tracker API for the http backend
  token            bearer token for the http backend
  account          account header sent to the http backend
  project          project values are recorded under
  patient_id       patient values are recorded for
  include_public   also list public trackers
  language         language for reading numbers, e.g. de
  timezone         time zone deciding day boundaries, e.g. Europe/Berlin
  data_dir         where the database and recents live
  recents          badger (default) or charm
  charm_host       Charm server for the charm recents store
  development      surface fetch errors instead of only logging them
  log_level        trace, debug, info, warn or error
  log_format       console or json

EXAMPLES:

  tracker config show
  tracker config set api_url https://tracker.example.com
  tracker config set backend http
  tracker config unset token`,
	// The config commands must work on an invalid file so it can be fixed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.ReadFile()
		if err != nil {
			return err
		}
		if c.Token != "" {
			c.Token = "********"
		}
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		if err := c.Validate(); err != nil {
			color.Yellow("⚠ %v", err)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.GetConfigPath())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := lookupField(args[0])
		if err != nil {
			return err
		}
		c, err := config.ReadFile()
		if err != nil {
			return err
		}
		fmt.Println(f.get(c))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(args[0], args[1])
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset one setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(args[0], "")
	},
}

func updateConfig(key, value string) error {
	f, err := lookupField(key)
	if err != nil {
		return err
	}
	c, err := config.ReadFile()
	if err != nil {
		return err
	}
	if err := f.set(c, value); err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if value == "" {
		color.Green("✓ Unset %s", key)
	} else {
		color.Green("✓ Set %s", key)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
