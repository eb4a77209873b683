package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit log of device operations.

Every run logs one event per device with:
  - Timestamp and run ID
  - User who ran the command
  - Device and operation
  - Number of changes found
  - Success/failure status

Examples:
  netverify audit list -d core-sw1
  netverify audit list --last 24h
  netverify audit list --op compare --failures`,
}

var (
	auditUser      string
	auditOperation string
	auditRun       string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(app.devices) > 1 {
			return fmt.Errorf("audit list filters on one device, got %d", len(app.devices))
		}
		filter := audit.Filter{
			User:        auditUser,
			Operation:   auditOperation,
			RunID:       auditRun,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if len(app.devices) == 1 {
			filter.Device = app.devices[0]
		}
		if auditLast != "" {
			d, err := parseSince(auditLast)
			if err != nil {
				return err
			}
			filter.StartTime = time.Now().Add(-d)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return printJSON(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "DEVICE", "OPERATION", "CHANGES", "STATUS")
		for _, event := range events {
			status := cli.Green("ok")
			if !event.Success {
				status = cli.Red("failed")
				if event.Kind != "" {
					status = cli.Red(string(event.Kind))
				}
			}
			op := event.Operation
			if event.Target != "" {
				op += " " + event.Target
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Device,
				op,
				strconv.Itoa(event.Changes),
				status,
			)
		}
		t.Flush()
		return nil
	},
}

// parseSince accepts time.ParseDuration input plus a whole-day suffix ("7d").
func parseSince(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil && n >= 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}

func init() {
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOperation, "op", "", "Filter by operation")
	auditListCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
