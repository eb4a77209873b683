package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/runner"
	"github.com/newtron-network/netverify/pkg/snapshot"
)

var collectMaster bool

// collectResult summarizes one capture.
type collectResult struct {
	Commands int            `json:"commands"`
	Errors   int            `json:"errors"`
	Backup   string         `json:"backup,omitempty"`
	Hits     []snapshot.Hit `json:"keyword_hits,omitempty"`
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Capture a snapshot of every device",
	Long: `Run each device's command list and store the normalized output as the
device's current snapshot. The previous snapshot is rotated to a timestamped
backup first. Configured keywords are searched in the new capture.

Examples:
  netverify collect
  netverify collect -d core-sw1 --master`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		capturer := &snapshot.Capturer{Dialer: app.dialer, Session: sessionConfig()}
		rep := runTasks(ctx, audit.OpCollect, devs, func(ctx context.Context, dev *inventory.Device, emit runner.Emit) (any, error) {
			snap, res, err := captureAndSave(ctx, capturer, st, dev, emit)
			if err != nil {
				return nil, err
			}
			if collectMaster {
				if err := st.SetMaster(ctx, snap); err != nil {
					return res, err
				}
				emit(runner.SeverityInfo, "pinned as master")
			}
			return res, nil
		})

		if app.jsonOutput {
			return printReportJSON(rep)
		}
		t := cli.NewTable("DEVICE", "COMMANDS", "ERRORS", "BACKUP", "STATUS")
		for _, res := range rep.Results {
			cr, _ := res.Data.(*collectResult)
			if cr == nil {
				cr = &collectResult{}
			}
			t.Row(res.Device, strconv.Itoa(cr.Commands), strconv.Itoa(cr.Errors), cr.Backup, resultStatus(res))
		}
		t.Flush()
		printHits(rep)
		printFailures(rep)
		return failedError(rep)
	},
}

// captureAndSave captures dev, saves it and scans it for keywords.
func captureAndSave(ctx context.Context, c *snapshot.Capturer, st snapshot.Store, dev *inventory.Device, emit runner.Emit) (*snapshot.Snapshot, *collectResult, error) {
	emit(runner.SeverityInfo, "capturing %d command(s)", len(dev.Commands))
	snap, err := c.Capture(ctx, dev)
	if err != nil {
		return nil, nil, err
	}
	for cmd, msg := range snap.Errors {
		emit(runner.SeverityWarn, "%s: %s", cmd, msg)
	}

	backup, err := st.Rotate(ctx, dev.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Save(ctx, snap); err != nil {
		return nil, nil, err
	}
	res := &collectResult{Commands: len(snap.Commands), Errors: len(snap.Errors), Backup: backup}
	emit(runner.SeverityOK, "saved %d command(s)", res.Commands)

	kws, err := st.Keywords(ctx, dev.Name)
	if err != nil {
		emit(runner.SeverityWarn, "keywords: %v", err)
	}
	res.Hits = snapshot.ScanKeywords(snap, kws)
	return snap, res, nil
}

func printHits(rep *runner.Report) {
	for _, res := range rep.Results {
		var hits []snapshot.Hit
		switch d := res.Data.(type) {
		case *collectResult:
			hits = d.Hits
		case *verifyResult:
			hits = d.Hits
		}
		if len(hits) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", cli.Bold(fmt.Sprintf("Keyword hits on %s", res.Device)))
		t := cli.NewTable("KEYWORD", "COMMAND", "LINE").WithPrefix("  ")
		for _, h := range hits {
			t.Row(cli.Yellow(h.Keyword), h.Command, h.Line)
		}
		t.Flush()
	}
}

func init() {
	collectCmd.Flags().BoolVar(&collectMaster, "master", false, "Also pin the new capture as master")
}
