package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newtron-network/netverify/pkg/util"
)

func newLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "core-sw1", OpCollect)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Device != "core-sw1" {
		t.Errorf("Device = %q, want %q", event.Device, "core-sw1")
	}
	if event.Operation != OpCollect {
		t.Errorf("Operation = %q, want %q", event.Operation, OpCollect)
	}
	if len(event.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", event.ID)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if other := NewEvent("alice", "core-sw1", OpCollect); other.ID == event.ID {
		t.Error("IDs should be unique")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "core-sw1", OpCompare).
		WithRun("run-1").
		WithTarget("master").
		WithChanges(3).
		WithDuration(time.Second).
		WithResult(nil)

	if event.RunID != "run-1" {
		t.Errorf("RunID = %q", event.RunID)
	}
	if event.Target != "master" {
		t.Errorf("Target = %q", event.Target)
	}
	if event.Changes != 3 {
		t.Errorf("Changes = %d", event.Changes)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithResult(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		success bool
		kind    util.ErrorKind
	}{
		{"success", nil, true, ""},
		{"plain error", errors.New("boom"), false, ""},
		{"device error", util.NewDeviceError("r1", util.KindAuth, "login", errors.New("denied")), false, util.KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent("alice", "r1", OpDiag).WithResult(tt.err)
			if event.Success != tt.success {
				t.Errorf("Success = %v, want %v", event.Success, tt.success)
			}
			if event.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", event.Kind, tt.kind)
			}
			if (tt.err != nil) != (event.Error != "") {
				t.Errorf("Error = %q", event.Error)
			}
		})
	}
}

func TestFileLogger_Basic(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	if err := logger.Log(NewEvent("alice", "core-sw1", OpCollect).WithResult(nil)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].User != "alice" || events[0].Device != "core-sw1" || !events[0].Success {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	for _, e := range []*Event{
		NewEvent("alice", "core-sw1", OpCollect).WithRun("r1").WithResult(nil),
		NewEvent("bob", "core-sw1", OpCompare).WithRun("r1").WithResult(nil),
		NewEvent("alice", "edge-rt1", OpDiag).WithRun("r2").WithResult(errors.New("failed")),
		NewEvent("charlie", "edge-rt2", OpCollect).WithRun("r2").WithResult(nil),
	} {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"user", Filter{User: "alice"}, 2},
		{"device", Filter{Device: "core-sw1"}, 2},
		{"operation", Filter{Operation: OpCollect}, 2},
		{"run", Filter{RunID: "r2"}, 2},
		{"success only", Filter{SuccessOnly: true}, 3},
		{"failure only", Filter{FailureOnly: true}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
		{"start time", Filter{StartTime: time.Now().Add(time.Hour)}, 0},
		{"time window", Filter{StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour)}, 4},
		{"end time", Filter{EndTime: time.Now().Add(-time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d events, want %d", len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_CreatesDirectories(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger should create directories: %v", err)
	}
	defer logger.Close()
}

func TestFileLogger_QueryMissingFile(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{})
	os.Remove(logPath)

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Errorf("Query on missing file should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 events, got %d", len(results))
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{})
	logger.Log(NewEvent("alice", "r1", OpCheck).WithResult(nil))

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()
	logger.Log(NewEvent("bob", "r2", OpCheck).WithResult(nil))

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events, got %d", len(results))
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{MaxSize: 100, MaxBackups: 2})

	for i := 0; i < 6; i++ {
		if err := logger.Log(NewEvent("alice", "core-sw1", OpCollect).WithResult(nil)); err != nil {
			t.Fatalf("Log %d failed: %v", i, err)
		}
	}

	rotated, _ := filepath.Glob(logPath + ".*")
	if len(rotated) != 2 {
		t.Errorf("rotated files = %v, want 2 kept", rotated)
	}
	results, _ := logger.Query(Filter{})
	if len(results) != 1 {
		t.Errorf("current file holds %d events, want 1", len(results))
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := logger.Log(NewEvent("alice", "r1", OpCheck)); err == nil {
		t.Error("Log after Close should fail")
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	if err := Log(NewEvent("test", "test", OpCheck)); err != nil {
		t.Errorf("Log with nil default should not error: %v", err)
	}
	if results, err := Query(Filter{}); err != nil || len(results) != 0 {
		t.Errorf("Query with nil default = %v, %v", results, err)
	}

	logger, _ := newLogger(t, RotationConfig{})
	SetDefaultLogger(logger)

	if err := Log(NewEvent("alice", "r1", OpVerify).WithResult(nil)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	results, err := Query(Filter{User: "alice"})
	if err != nil || len(results) != 1 {
		t.Errorf("Query = %v, %v", results, err)
	}
}
