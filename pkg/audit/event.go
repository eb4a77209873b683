// Package audit records one event per device task of every run so operators
// can answer who checked, collected or compared what, and with which outcome.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/netverify/pkg/util"
)

// Operations recorded by the CLI.
const (
	OpCheck    = "check"
	OpCollect  = "collect"
	OpCompare  = "compare"
	OpVerify   = "verify"
	OpDiag     = "diag"
	OpTopology = "topology"
	OpMaster   = "master"
)

// Event is one audited device task.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user"`
	Device    string         `json:"device"`
	Operation string         `json:"operation"`
	Target    string         `json:"target,omitempty"` // trace destination, snapshot name
	Changes   int            `json:"changes"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Kind      util.ErrorKind `json:"kind,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

func (f Filter) match(e *Event) bool {
	switch {
	case f.Device != "" && e.Device != f.Device,
		f.User != "" && e.User != f.User,
		f.Operation != "" && e.Operation != f.Operation,
		f.RunID != "" && e.RunID != f.RunID,
		!f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime),
		!f.EndTime.IsZero() && e.Timestamp.After(f.EndTime),
		f.SuccessOnly && !e.Success,
		f.FailureOnly && e.Success:
		return false
	}
	return true
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithRun tags the event with the batch it belongs to.
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithTarget sets the operation target
func (e *Event) WithTarget(target string) *Event {
	e.Target = target
	return e
}

// WithChanges sets the number of differences found
func (e *Event) WithChanges(n int) *Event {
	e.Changes = n
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithResult marks the event successful when err is nil, failed otherwise.
// Device errors also record their kind.
func (e *Event) WithResult(err error) *Event {
	e.Success = err == nil
	e.Error, e.Kind = "", ""
	if err != nil {
		e.Error = err.Error()
		var de *util.DeviceError
		if errors.As(err, &de) {
			e.Kind = de.Kind
		}
	}
	return e
}
