// Netverify - multi-vendor network verification tool
//
// Drives CLI sessions against routers, switches and firewalls over SSH or
// Telnet to:
//   - check management reachability (ping, optional traceroute)
//   - capture per-device snapshots and diff them against the previous
//     capture or a pinned master
//   - trace a destination hop by hop across managed devices
//   - rebuild the layer-2 topology from ARP and MAC tables
//
// Device selection:
//
//	netverify -i devices.yaml [-d name,...] <command>
//
// Examples:
//
//	netverify check --trace
//	netverify collect -d core-sw1
//	netverify compare --against master
//	netverify verify
//	netverify diag core-sw1 10.20.30.40
//	netverify topology --json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/settings"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/version"
)

// App holds global flags and the state initialized once per invocation.
type App struct {
	inventoryPath string
	devices       []string
	settingsPath  string
	verbose       bool
	jsonOutput    bool
	noColor       bool
	workers       int

	settings *settings.Settings
	dialer   transport.Dialer
	user     string
}

var app = &App{}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "netverify",
	Short:             "Multi-vendor network verification tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Netverify automates CLI sessions against network devices to verify
reachability, detect configuration drift, localize faults hop by hop and
rebuild the layer-2 topology.

  netverify -i <inventory> [-d <device>,...] <command>`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if app.noColor {
			cli.SetColor(false)
		}

		path := app.settingsPath
		if path == "" {
			path = settings.DefaultSettingsPath()
		}
		s, err := settings.LoadFrom(path)
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			s = &settings.Settings{}
		}
		app.settings = s

		if isMetaCommand(cmd) {
			return nil
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("settings: %w", err)
		}

		app.dialer = transport.NewDialer()
		app.user = currentUser()

		auditLogger, err := audit.NewFileLogger(s.GetAuditLog(), audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.inventoryPath, "inventory", "i", "", "Inventory file (YAML or JSON)")
	rootCmd.PersistentFlags().StringSliceVarP(&app.devices, "device", "d", nil, "Device name(s), comma separated (default all)")
	rootCmd.PersistentFlags().StringVar(&app.settingsPath, "settings", "", "Settings file (default ~/.netverify/settings.json)")
	rootCmd.PersistentFlags().IntVarP(&app.workers, "workers", "w", 0, "Concurrent device sessions")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "Disable colored output")

	for _, cmd := range []*cobra.Command{
		checkCmd, collectCmd, compareCmd, verifyCmd, diagCmd, topologyCmd,
		masterCmd, backupsCmd, keywordsCmd, vendorsCmd, auditListCmd,
	} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "diagnose", Title: "Diagnostics:"},
		&cobra.Group{ID: "snapshot", Title: "Snapshots & Drift:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{checkCmd, diagCmd, topologyCmd} {
		cmd.GroupID = "diagnose"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{collectCmd, compareCmd, verifyCmd, masterCmd, backupsCmd, keywordsCmd} {
		cmd.GroupID = "snapshot"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{vendorsCmd, settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("netverify dev build (set version via -ldflags, see pkg/version)")
		} else {
			fmt.Println("netverify " + version.Info())
		}
	},
}

// isMetaCommand checks whether cmd (or any ancestor) needs no devices.
func isMetaCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings", "vendors":
			return true
		}
	}
	return false
}

// addOutputFlags registers --json as a local flag.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&app.jsonOutput, "json", false, "JSON output")
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
