package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/newtron-network/netverify/pkg/util"
)

func newTestStore(t *testing.T) (*FileStore, *time.Time) {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	fs.Now = func() time.Time { return now }
	return fs, &now
}

func snap(device, version string) *Snapshot {
	s := New(device)
	s.CapturedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Commands["show version"] = version
	s.Raw["show version"] = version
	return s
}

func TestFileStore_SaveLoad(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := fs.Load(ctx, "r1"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("Load() on empty store error = %v, want ErrNotFound", err)
	}

	if err := fs.Save(ctx, snap("r1", "15.2")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := fs.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Commands["show version"] != "15.2" {
		t.Errorf("Commands = %v", got.Commands)
	}
	if _, err := os.Stat(filepath.Join(fs.Dir, "r1_20240301_090000.log")); err != nil {
		t.Errorf("raw log not written: %v", err)
	}
}

func TestFileStore_RotateBeforeOverwrite(t *testing.T) {
	fs, now := newTestStore(t)
	ctx := context.Background()

	if name, err := fs.Rotate(ctx, "r1"); err != nil || name != "" {
		t.Fatalf("Rotate() on empty = %q, %v", name, err)
	}

	for i, v := range []string{"1", "2", "3"} {
		*now = now.Add(time.Duration(i) * time.Minute)
		if err := fs.Save(ctx, snap("r1", v)); err != nil {
			t.Fatalf("Save(%s) error = %v", v, err)
		}
	}

	cur, err := fs.Load(ctx, "r1")
	if err != nil || cur.Commands["show version"] != "3" {
		t.Fatalf("current = %v, %v", cur, err)
	}
	backups, err := fs.Backups(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("backups = %v, want 2", backups)
	}
	prev, err := Previous(ctx, fs, "r1")
	if err != nil || prev.Commands["show version"] != "2" {
		t.Errorf("Previous() = %v, %v", prev, err)
	}
}

func TestFileStore_RotateSameSecond(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()
	for _, v := range []string{"1", "2", "3"} {
		if err := fs.Save(ctx, snap("r1", v)); err != nil {
			t.Fatal(err)
		}
	}
	backups, _ := fs.Backups(ctx, "r1")
	want := []string{"20240301_093000", "20240301_093000_1"}
	if !reflect.DeepEqual(backups, want) {
		t.Errorf("backups = %v, want %v", backups, want)
	}
}

func TestFileStore_PreviousAfterTenRotations(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i <= 12; i++ {
		if err := fs.Save(ctx, snap("r1", strconv.Itoa(i))); err != nil {
			t.Fatal(err)
		}
	}

	backups, _ := fs.Backups(ctx, "r1")
	if len(backups) != 12 {
		t.Fatalf("backups = %v, want 12", backups)
	}
	if last := backups[len(backups)-1]; last != "20240301_093000_11" {
		t.Errorf("last backup = %s, want 20240301_093000_11", last)
	}
	prev, err := Previous(ctx, fs, "r1")
	if err != nil || prev.Commands["show version"] != "11" {
		t.Errorf("Previous() = %v, %v, want version 11", prev, err)
	}
}

func TestSortBackups(t *testing.T) {
	names := []string{
		"20240301_093000_10",
		"20240301_093001",
		"20240301_093000_9",
		"20240301_093000",
		"20240301_093000_1",
	}
	sortBackups(names)
	want := []string{
		"20240301_093000",
		"20240301_093000_1",
		"20240301_093000_9",
		"20240301_093000_10",
		"20240301_093001",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("sortBackups() = %v, want %v", names, want)
	}
}

func TestFileStore_Master(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := fs.Master(ctx, "r1"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("Master() error = %v, want ErrNotFound", err)
	}
	if err := fs.SetMaster(ctx, snap("r1", "golden")); err != nil {
		t.Fatal(err)
	}
	if err := fs.SetMaster(ctx, snap("r1", "golden2")); err != nil {
		t.Fatal(err)
	}
	m, err := fs.Master(ctx, "r1")
	if err != nil || m.Commands["show version"] != "golden2" {
		t.Errorf("Master() = %v, %v", m, err)
	}
	if backups, _ := fs.Backups(ctx, "r1"); len(backups) != 0 {
		t.Errorf("master counted as backup: %v", backups)
	}
}

func TestFileStore_SanitizesNames(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()
	if err := fs.Save(ctx, snap(`core/sw:1`, "x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(fs.Dir, "core_sw_1.json")); err != nil {
		t.Errorf("sanitized file missing: %v", err)
	}
	if _, err := fs.Load(ctx, `core/sw:1`); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestFileStore_Keywords(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()

	kws, err := fs.Keywords(ctx, "r1")
	if err != nil || len(kws) != 0 {
		t.Fatalf("Keywords() on empty = %v, %v", kws, err)
	}
	want := []string{"down", "err-disabled"}
	if err := fs.SetKeywords(ctx, "r1", want); err != nil {
		t.Fatal(err)
	}
	if kws, _ := fs.Keywords(ctx, "r1"); !reflect.DeepEqual(kws, want) {
		t.Errorf("Keywords() = %v, want %v", kws, want)
	}
	if backups, _ := fs.Backups(ctx, "r1"); len(backups) != 0 {
		t.Errorf("keyword file counted as backup: %v", backups)
	}
}

func TestFileStore_CorruptSnapshotIsPersistenceFailure(t *testing.T) {
	fs, _ := newTestStore(t)
	if err := os.WriteFile(filepath.Join(fs.Dir, "r1.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := fs.Load(context.Background(), "r1")
	if !errors.Is(err, util.ErrPersistenceFailure) {
		t.Errorf("error = %v, want PersistenceFailure", err)
	}
}

func TestIsBackupStamp(t *testing.T) {
	tests := map[string]bool{
		"20240301_093000":   true,
		"20240301_093000_2": true,
		"master":            false,
		"keywords":          false,
		"20240301_093000_":  false,
		"20240301_093000x":  false,
	}
	for in, want := range tests {
		if got := isBackupStamp(in); got != want {
			t.Errorf("isBackupStamp(%q) = %v, want %v", in, got, want)
		}
	}
}
