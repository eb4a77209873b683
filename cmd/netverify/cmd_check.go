package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/probe"
	"github.com/newtron-network/netverify/pkg/runner"
)

var (
	checkTrace      bool
	checkPrivileged bool
	checkTimeout    time.Duration
	checkWait       time.Duration
	checkMaxHops    int
)

type checkResult struct {
	Address   string `json:"address"`
	Reachable bool   `json:"reachable"`
	Trace     string `json:"trace,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ping every device's management address",
	Long: `Ping the management address of every selected device in parallel.

With --trace, a traceroute to each device follows the ping; its banner
lines are dropped so only hop lines remain.

Examples:
  netverify check
  netverify check -d core-sw1,core-sw2 --trace --wait 1s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}

		pinger := &probe.ICMPPinger{Privileged: checkPrivileged}
		tracer := &probe.CommandTracer{MaxHops: checkMaxHops, Wait: checkWait}

		rep := runTasks(ctx, audit.OpCheck, devs, func(ctx context.Context, dev *inventory.Device, emit runner.Emit) (any, error) {
			res := &checkResult{Address: dev.Address}
			ok, err := pinger.Ping(ctx, dev.Address, checkTimeout)
			if err != nil {
				return res, err
			}
			res.Reachable = ok
			if ok {
				emit(runner.SeverityOK, "%s reachable", dev.Address)
			} else {
				emit(runner.SeverityWarn, "%s unreachable", dev.Address)
			}

			if checkTrace {
				emit(runner.SeverityInfo, "tracing %s", dev.Address)
				out, err := tracer.Trace(ctx, dev.Address)
				res.Trace = out
				if err != nil && errors.Is(err, probe.ErrInterrupted) {
					return res, err
				}
				if err != nil {
					emit(runner.SeverityWarn, "traceroute: %v", err)
				}
			}
			return res, nil
		})

		if app.jsonOutput {
			return printReportJSON(rep)
		}

		t := cli.NewTable("DEVICE", "ADDRESS", "PING")
		for i, res := range rep.Results {
			status := resultStatus(res)
			if cr, ok := res.Data.(*checkResult); ok && res.Err == nil {
				status = cli.Status("UNREACHABLE")
				if cr.Reachable {
					status = cli.Status("REACHABLE")
				}
			}
			t.Row(res.Device, devs[i].Address, status)
		}
		t.Flush()

		if checkTrace {
			for _, res := range rep.Results {
				cr, ok := res.Data.(*checkResult)
				if !ok || cr.Trace == "" {
					continue
				}
				fmt.Printf("\n%s\n", cli.Bold("traceroute "+res.Device+" ("+cr.Address+")"))
				for _, line := range strings.Split(cr.Trace, "\n") {
					fmt.Println("  " + line)
				}
			}
		}
		printFailures(rep)
		return failedError(rep)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkTrace, "trace", false, "Run traceroute after ping")
	checkCmd.Flags().BoolVar(&checkPrivileged, "privileged", false, "Use raw ICMP sockets (needs root or CAP_NET_RAW)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Second, "Ping timeout")
	checkCmd.Flags().DurationVar(&checkWait, "wait", 2*time.Second, "Traceroute per-probe wait")
	checkCmd.Flags().IntVar(&checkMaxHops, "max-hops", 30, "Traceroute hop limit")
}
