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
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/snapshot"
)

// Baselines accepted by --against besides a backup name.
const (
	againstPrevious = "previous"
	againstMaster   = "master"
)

var (
	compareAgainst string
	compareSaved   bool
)

// compareResult is the diff of one device.
type compareResult struct {
	Against string            `json:"against"`
	Changes []snapshot.Change `json:"changes"`
}

func (r *compareResult) ChangeCount() int { return len(r.Changes) }

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Diff the current snapshot against a baseline",
	Long: `Compare each device's current snapshot against its previous capture,
its pinned master, or a named backup. Lists are compared regardless of
order, so only real additions, removals and value changes are reported.

With --saved, each device is contacted instead and its saved (startup)
configuration is diffed against the running one; additions are unsaved
changes.

Examples:
  netverify compare
  netverify compare --against master
  netverify compare -d core-sw1 --against 20240301_093000
  netverify compare --saved`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}

		var rep *runner.Report
		if compareSaved {
			rep = runTasks(ctx, audit.OpCompare, devs, compareSavedTask)
		} else {
			st, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			rep = runTasks(ctx, audit.OpCompare, devs, func(ctx context.Context, dev *inventory.Device, emit runner.Emit) (any, error) {
				cur, err := st.Load(ctx, dev.Name)
				if err != nil {
					return nil, err
				}
				return compareWith(ctx, st, cur, compareAgainst)
			})
		}

		if app.jsonOutput {
			return printReportJSON(rep)
		}
		printChanges(rep)
		printFailures(rep)
		return failedError(rep)
	},
}

func compareSavedTask(ctx context.Context, dev *inventory.Device, emit runner.Emit) (any, error) {
	res := &compareResult{Against: "saved"}
	err := session.Run(ctx, dev, app.dialer, sessionConfig(), func(s *session.Session) error {
		emit(runner.SeverityInfo, "comparing saved and running configuration")
		changes, err := snapshot.CompareSaved(ctx, s)
		res.Changes = changes
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// compareWith diffs cur against the named baseline of its device.
func compareWith(ctx context.Context, st snapshot.Store, cur *snapshot.Snapshot, against string) (*compareResult, error) {
	var (
		base *snapshot.Snapshot
		err  error
	)
	switch against {
	case againstPrevious, "":
		against = againstPrevious
		base, err = snapshot.Previous(ctx, st, cur.Device)
	case againstMaster:
		base, err = st.Master(ctx, cur.Device)
	default:
		base, err = st.LoadBackup(ctx, cur.Device, against)
	}
	if err != nil {
		return nil, fmt.Errorf("%s baseline: %w", against, err)
	}
	return &compareResult{Against: against, Changes: snapshot.Diff(base, cur)}, nil
}

// printChanges prints a summary table and then every change per device.
func printChanges(rep *runner.Report) {
	t := cli.NewTable("DEVICE", "AGAINST", "CHANGED", "ADDED", "REMOVED", "STATUS")
	for _, res := range rep.Results {
		cr := compareOf(res)
		if cr == nil {
			t.Row(res.Device, "", "", "", "", resultStatus(res))
			continue
		}
		sum := snapshot.Summary(cr.Changes)
		status := cli.Green("NO CHANGES")
		if len(cr.Changes) > 0 {
			status = cli.Yellow("DRIFT")
		}
		t.Row(res.Device, cr.Against,
			strconv.Itoa(sum[snapshot.Changed]), strconv.Itoa(sum[snapshot.Added]), strconv.Itoa(sum[snapshot.Removed]),
			status)
	}
	t.Flush()

	for _, res := range rep.Results {
		cr := compareOf(res)
		if cr == nil || len(cr.Changes) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", cli.Bold(res.Device))
		ct := cli.NewTable("KIND", "COMMAND", "SECTION", "OLD", "NEW").WithPrefix("  ")
		for _, c := range cr.Changes {
			ct.Row(kindText(c.Kind), c.Command, c.Section, snapshot.FormatValue(c.Old), snapshot.FormatValue(c.New))
		}
		ct.Flush()
	}
}

func compareOf(res runner.Result) *compareResult {
	switch d := res.Data.(type) {
	case *compareResult:
		return d
	case *verifyResult:
		return d.Compare
	}
	return nil
}

func kindText(k snapshot.ChangeKind) string {
	switch k {
	case snapshot.Added:
		return cli.Green(string(k))
	case snapshot.Removed:
		return cli.Red(string(k))
	}
	return cli.Yellow(string(k))
}

func init() {
	compareCmd.Flags().StringVar(&compareAgainst, "against", againstPrevious, "Baseline: previous, master, or a backup name")
	compareCmd.Flags().BoolVar(&compareSaved, "saved", false, "Diff saved vs running configuration on the live device")
}
