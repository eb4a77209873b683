package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/diag"
	"github.com/newtron-network/netverify/pkg/probe"
	"github.com/newtron-network/netverify/pkg/util"
)

var (
	diagMaxHops int
	diagNoPing  bool
)

var diagCmd = &cobra.Command{
	Use:   "diag <from-device> <destination>",
	Short: "Trace a destination hop by hop across managed devices",
	Long: `Starting at <from-device>, look up the route to <destination>, check the
egress interface, and move to the next-hop device, until the destination is
reached, a hop fails, a device repeats, or the hop limit is hit.

<from-device> is an inventory name or management address.

Examples:
  netverify diag core-sw1 10.20.30.40
  netverify diag 10.0.0.1 192.168.5.9/24 --max-hops 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		inv, err := loadInventory()
		if err != nil {
			return err
		}

		maxHops := diagMaxHops
		if maxHops <= 0 {
			maxHops = app.settings.GetMaxHops()
		}
		cfg := diag.Config{
			Inventory: inv,
			Dialer:    app.dialer,
			Session:   sessionConfig(),
			MaxHops:   maxHops,
		}
		if !diagNoPing {
			cfg.Pinger = &probe.ICMPPinger{}
		}
		if !app.jsonOutput {
			fmt.Printf("Tracing %s from %s (max %d hops)\n\n", cli.Bold(args[1]), args[0], maxHops)
			cfg.OnHop = printHop
		}

		trace, err := diag.New(cfg).Trace(ctx, args[0], args[1])
		event := audit.NewEvent(app.user, args[0], audit.OpDiag).WithTarget(args[1])
		if err != nil {
			audit.Log(event.WithResult(err))
			return err
		}
		event.WithDuration(trace.Duration)
		if trace.State != diag.StateReached {
			event.WithResult(fmt.Errorf("%s: %s", trace.State, trace.Reason))
		} else {
			event.WithResult(nil)
		}
		if err := audit.Log(event); err != nil {
			util.Warnf("audit: %v", err)
		}

		if app.jsonOutput {
			return printJSON(trace)
		}
		fmt.Println()
		summary := fmt.Sprintf("%s after %d hop(s) in %s", cli.Status(string(trace.State)), len(trace.Hops), trace.Duration.Round(time.Millisecond))
		if trace.Reason != "" {
			summary += ": " + trace.Reason
		}
		fmt.Println(summary)
		if trace.State != diag.StateReached {
			return fmt.Errorf("destination %s not reached (%s)", trace.Destination, trace.Reason)
		}
		return nil
	},
}

func printHop(h diag.Hop) {
	line := fmt.Sprintf("%3s  %-18s %s", strconv.Itoa(h.Index), h.Device, cli.Status(string(h.Status)))
	if h.NextHop != "" {
		line += "  -> " + h.NextHop
	}
	if h.Interface != "" {
		line += cli.Dim(" via " + h.Interface)
	}
	if h.Reason != "" {
		line += "  " + cli.Red("["+h.Reason+"]")
	}
	fmt.Println(line)
	for _, w := range h.Warnings {
		fmt.Println("       " + cli.Yellow("warning: "+w))
	}
	if h.Unmanaged {
		var notes []string
		if h.Virtual != "" {
			notes = append(notes, "virtual "+h.Virtual+" address")
		}
		if h.Reachable {
			notes = append(notes, "answers ping")
		} else {
			notes = append(notes, "no ping reply")
		}
		fmt.Println("       " + cli.Dim("next hop not in inventory: "+strings.Join(notes, ", ")))
	}
	if h.Error != "" && app.verbose {
		fmt.Println("       " + cli.Dim(h.Error))
	}
}

func init() {
	diagCmd.Flags().IntVar(&diagMaxHops, "max-hops", 0, "Hop limit (default from settings, 15)")
	diagCmd.Flags().BoolVar(&diagNoPing, "no-ping", false, "Do not ping next hops outside the inventory")
}
