package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/runner"
	"github.com/newtron-network/netverify/pkg/snapshot"
	"github.com/newtron-network/netverify/pkg/util"
)

var verifyAgainst string

// verifyResult is a capture plus its diff.
type verifyResult struct {
	*collectResult
	Compare *compareResult `json:"compare,omitempty"`
}

func (r *verifyResult) ChangeCount() int {
	if r.Compare == nil {
		return 0
	}
	return r.Compare.ChangeCount()
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Capture snapshots and diff them in one step",
	Long: `Capture every device like 'collect' and immediately compare the new
snapshot against the previous capture or the master. A device with no
baseline yet is captured and reported without a diff.

Examples:
  netverify verify
  netverify verify --against master`,
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
		rep := runTasks(ctx, audit.OpVerify, devs, func(ctx context.Context, dev *inventory.Device, emit runner.Emit) (any, error) {
			snap, cr, err := captureAndSave(ctx, capturer, st, dev, emit)
			if err != nil {
				return nil, err
			}
			res := &verifyResult{collectResult: cr}
			diff, err := compareWith(ctx, st, snap, verifyAgainst)
			if errors.Is(err, util.ErrNotFound) {
				emit(runner.SeverityWarn, "no %s baseline yet", verifyAgainst)
				return res, nil
			}
			if err != nil {
				return res, err
			}
			res.Compare = diff
			if n := diff.ChangeCount(); n > 0 {
				emit(runner.SeverityWarn, "%d change(s) against %s", n, diff.Against)
			} else {
				emit(runner.SeverityOK, "no changes against %s", diff.Against)
			}
			return res, nil
		})

		if app.jsonOutput {
			return printReportJSON(rep)
		}
		printChanges(rep)
		printHits(rep)
		printFailures(rep)
		return failedError(rep)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyAgainst, "against", againstPrevious, "Baseline: previous or master")
}
