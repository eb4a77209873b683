// Package runner executes one task per inventory device on a bounded
// worker pool. Tasks report progress as Events; a single collector
// goroutine delivers events to the caller and gathers Results, so
// presentation code never runs concurrently with itself.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/util"
)

// DefaultWorkers bounds concurrent device tasks.
const DefaultWorkers = 8

// Severity grades an Event.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityOK    Severity = "ok"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Event is one progress line of a device task.
type Event struct {
	Device   string    `json:"device"`
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// Result is the outcome of one device task.
type Result struct {
	Device   string        `json:"device"`
	Data     any           `json:"data,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the task succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Emit publishes an event for the device the task is running on.
type Emit func(sev Severity, format string, args ...any)

// Task does the per-device work. Returned errors are recorded in the
// device's Result and never stop the batch.
type Task func(ctx context.Context, dev *inventory.Device, emit Emit) (any, error)

// Report is a finished batch.
type Report struct {
	ID       string        `json:"id"`
	Results  []Result      `json:"results"` // inventory order
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Runner runs a Task against a device list.
type Runner struct {
	// Workers bounds concurrency; DefaultWorkers when <= 0.
	Workers int
	// OnEvent receives every event from the collector goroutine.
	OnEvent func(Event)
	// OnResult receives every result as its task finishes, also from the
	// collector goroutine.
	OnResult func(Result)
}

type message struct {
	event  *Event
	index  int
	result *Result
}

// Run executes task once per device and blocks until all tasks finish.
// Devices not started before ctx is cancelled get a Result carrying the
// context error.
func (r *Runner) Run(ctx context.Context, devices []*inventory.Device, task Task) *Report {
	rep := &Report{
		ID:      uuid.New().String(),
		Results: make([]Result, len(devices)),
		Started: time.Now(),
	}
	log := util.WithRun(rep.ID)
	log.Debugf("running %d device task(s)", len(devices))

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	msgs := make(chan message, workers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range msgs {
			if m.event != nil {
				if r.OnEvent != nil {
					r.OnEvent(*m.event)
				}
				continue
			}
			rep.Results[m.index] = *m.result
			if r.OnResult != nil {
				r.OnResult(*m.result)
			}
		}
	}()

	p := pool.New().WithMaxGoroutines(workers)
	for i, dev := range devices {
		p.Go(func() {
			res := runOne(ctx, dev, task, msgs)
			if res.Err != nil {
				util.WithError(res.Err).WithField("run", rep.ID).Debug("device task failed")
			}
			msgs <- message{index: i, result: &res}
		})
	}
	p.Wait()
	close(msgs)
	<-done

	rep.Duration = time.Since(rep.Started)
	log.Debugf("run finished in %s, %d failed", rep.Duration.Round(time.Millisecond), len(rep.Failed()))
	return rep
}

func runOne(ctx context.Context, dev *inventory.Device, task Task, msgs chan<- message) Result {
	res := Result{Device: dev.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	emit := func(sev Severity, format string, args ...any) {
		msgs <- message{event: &Event{
			Device:   dev.Name,
			Severity: sev,
			Text:     fmt.Sprintf(format, args...),
			Time:     time.Now(),
		}}
	}

	start := time.Now()
	var pc panics.Catcher
	pc.Try(func() {
		res.Data, res.Err = task(ctx, dev, emit)
	})
	if rec := pc.Recovered(); rec != nil {
		res.Data = nil
		res.Err = fmt.Errorf("%s: task panicked: %w", dev.Name, rec.AsError())
	}
	res.Duration = time.Since(start)
	return res
}
