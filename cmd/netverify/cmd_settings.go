package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.netverify/settings.json.

Settings provide defaults for flags and stores:
  - inventory:    Used when -i is not specified
  - snapshot_dir: Directory of the file snapshot store
  - store:        "file" or "redis"

Every setting can be overridden by NETVERIFY_<SETTING> in the environment.

Examples:
  netverify settings show
  netverify settings set inventory ~/lab/inventory.yaml
  netverify settings set store redis
  netverify settings clear`,
}

func settingsFile() string {
	if app.settingsPath != "" {
		return app.settingsPath
	}
	return settings.DefaultSettingsPath()
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFile(settingsFile())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settingsFile())

		values := s.Map()
		t := cli.NewTable("SETTING", "VALUE")
		for _, key := range settings.Keys() {
			v := values[key]
			if v == "" {
				v = cli.Dim("(not set)")
			}
			t.Row(key, v)
		}
		t.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Print one setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFile(settingsFile())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		v, ok := s.Map()[args[0]]
		if !ok {
			return fmt.Errorf("unknown setting %q (known: %s)", args[0], strings.Join(settings.Keys(), ", "))
		}
		fmt.Println(v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value. An empty value clears it.

Available settings:
  inventory        - Default inventory file (-i flag default)
  snapshot_dir     - Snapshot directory of the file store
  store            - Snapshot store: file or redis
  redis_addr       - Redis address (host:port) for the redis store
  redis_db         - Redis database number
  audit_log        - Audit log file
  dial_timeout     - Connect timeout in seconds
  command_timeout  - Per-command timeout in seconds
  workers          - Concurrent device sessions (-w flag default)
  max_hops         - Hop limit of diag

Examples:
  netverify settings set store redis
  netverify settings set redis_addr 127.0.0.1:6379
  netverify settings set command_timeout 60`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFile(settingsFile())
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if err := s.SaveTo(settingsFile()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		s.Clear()
		if err := s.SaveTo(settingsFile()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
}
