package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/runner"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/settings"
	"github.com/newtron-network/netverify/pkg/snapshot"
	"github.com/newtron-network/netverify/pkg/util"
)

// loadInventory reads the inventory from -i or the inventory setting and
// prompts for credentials the file leaves out.
func loadInventory() (*inventory.Inventory, error) {
	path := app.inventoryPath
	if path == "" {
		path = app.settings.Inventory
	}
	if path == "" {
		return nil, fmt.Errorf("inventory required: use -i <file> or 'netverify settings set inventory <file>'")
	}
	inv, err := inventory.Load(path)
	if err != nil {
		return nil, err
	}
	if err := promptCredentials(inv.Devices); err != nil {
		return nil, err
	}
	return inv, nil
}

// selectDevices loads the inventory and applies -d.
func selectDevices() (*inventory.Inventory, []*inventory.Device, error) {
	inv, err := loadInventory()
	if err != nil {
		return nil, nil, err
	}
	devs, err := inv.Select(app.devices)
	if err != nil {
		return nil, nil, err
	}
	return inv, devs, nil
}

func sessionConfig() session.Config {
	return session.Config{
		DialTimeout:    app.settings.GetDialTimeout(),
		CommandTimeout: app.settings.GetCommandTimeout(),
		DisablePaging:  true,
		Escalate:       true,
	}
}

func workers() int {
	if app.workers > 0 {
		return app.workers
	}
	return app.settings.GetWorkers()
}

// openStore returns the configured snapshot store and its closer.
func openStore(ctx context.Context) (snapshot.Store, func(), error) {
	s := app.settings
	switch s.GetStore() {
	case settings.StoreRedis:
		rs := snapshot.NewRedisStore(s.RedisAddr, s.RedisDB, snapshot.DefaultRedisPrefix)
		if err := rs.Connect(ctx); err != nil {
			rs.Close()
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	default:
		fs, err := snapshot.NewFileStore(s.GetSnapshotDir())
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

// changeCounter is implemented by task results that carry a diff.
type changeCounter interface {
	ChangeCount() int
}

// runTasks runs task on every device, streams events to stderr (unless
// --json) and writes one audit event per device.
func runTasks(ctx context.Context, op string, devs []*inventory.Device, task runner.Task) *runner.Report {
	r := &runner.Runner{
		Workers: workers(),
		OnEvent: func(ev runner.Event) {
			if app.jsonOutput {
				return
			}
			fmt.Fprintf(os.Stderr, "%s %s\n", cli.Dim("["+ev.Device+"]"), severityText(ev.Severity, ev.Text))
		},
	}
	rep := r.Run(ctx, devs, task)

	for _, res := range rep.Results {
		event := audit.NewEvent(app.user, res.Device, op).
			WithRun(rep.ID).
			WithDuration(res.Duration).
			WithResult(res.Err)
		if cc, ok := res.Data.(changeCounter); ok {
			event.WithChanges(cc.ChangeCount())
		}
		if err := audit.Log(event); err != nil {
			util.Warnf("audit: %v", err)
		}
	}
	return rep
}

func severityText(sev runner.Severity, text string) string {
	switch sev {
	case runner.SeverityOK:
		return cli.Green(text)
	case runner.SeverityWarn:
		return cli.Yellow(text)
	case runner.SeverityError:
		return cli.Red(text)
	}
	return text
}

// resultStatus renders a result cell: OK, or the error in red.
func resultStatus(res runner.Result) string {
	if res.Err == nil {
		return cli.Green("OK")
	}
	return cli.Red(shortError(res.Err))
}

func shortError(err error) string {
	if kind := util.KindOf(err); kind != "" {
		return string(kind)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	return msg
}

// failedError summarizes a report for the exit status.
func failedError(rep *runner.Report) error {
	failed := rep.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	for i, f := range failed {
		names[i] = f.Device
	}
	return fmt.Errorf("%d of %d device(s) failed: %s", len(failed), len(rep.Results), strings.Join(names, ", "))
}

// jsonResult is the --json shape of one runner result.
type jsonResult struct {
	Device   string        `json:"device"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Duration time.Duration `json:"duration"`
	Data     any           `json:"data,omitempty"`
}

func printReportJSON(rep *runner.Report) error {
	out := struct {
		Run     string       `json:"run"`
		Results []jsonResult `json:"results"`
	}{Run: rep.ID}
	for _, res := range rep.Results {
		jr := jsonResult{Device: res.Device, OK: res.Err == nil, Duration: res.Duration, Data: res.Data}
		if res.Err != nil {
			jr.Error = res.Err.Error()
			jr.Kind = string(util.KindOf(res.Err))
		}
		out.Results = append(out.Results, jr)
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFailures lists the full error of every failed device.
func printFailures(rep *runner.Report) {
	for _, res := range rep.Failed() {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", cli.Red("✗"), res.Device, res.Err)
	}
}
