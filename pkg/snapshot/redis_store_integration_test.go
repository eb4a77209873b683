//go:build integration

package snapshot

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/newtron-network/netverify/internal/testutil"
	"github.com/newtron-network/netverify/pkg/util"
)

func newRedisStore(t *testing.T) (*RedisStore, string) {
	t.Helper()
	addr := testutil.SkipIfNoRedis(t)
	testutil.FlushDB(t, addr, testutil.RedisDB)

	rs := NewRedisStore(addr, testutil.RedisDB, "nvtest")
	if err := rs.Connect(testutil.Context(t)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rs.Now = func() time.Time { return now }
	return rs, addr
}

func TestRedisStore_SaveRotate(t *testing.T) {
	rs, addr := newRedisStore(t)
	ctx := testutil.Context(t)

	if _, err := rs.Load(ctx, "r1"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("Load() on empty error = %v, want ErrNotFound", err)
	}
	for _, v := range []string{"1", "2", "3"} {
		if err := rs.Save(ctx, snap("r1", v)); err != nil {
			t.Fatalf("Save(%s) error = %v", v, err)
		}
	}

	cur, err := rs.Load(ctx, "r1")
	if err != nil || cur.Commands["show version"] != "3" {
		t.Fatalf("Load() = %v, %v", cur, err)
	}
	backups, err := rs.Backups(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"20240301_093000", "20240301_093000_1"}; !reflect.DeepEqual(backups, want) {
		t.Errorf("Backups() = %v, want %v", backups, want)
	}
	prev, err := Previous(ctx, rs, "r1")
	if err != nil || prev.Commands["show version"] != "2" {
		t.Errorf("Previous() = %v, %v", prev, err)
	}
	if n := testutil.KeyCount(t, addr, testutil.RedisDB, "nvtest:snapshot:r1:log:"); n != 1 {
		t.Errorf("raw log keys = %d, want 1", n)
	}
}

func TestRedisStore_MasterAndKeywords(t *testing.T) {
	rs, _ := newRedisStore(t)
	ctx := testutil.Context(t)

	if _, err := rs.Master(ctx, "r1"); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("Master() error = %v, want ErrNotFound", err)
	}
	if err := rs.SetMaster(ctx, snap("r1", "golden")); err != nil {
		t.Fatal(err)
	}
	m, err := rs.Master(ctx, "r1")
	if err != nil || m.Commands["show version"] != "golden" {
		t.Errorf("Master() = %v, %v", m, err)
	}

	want := []string{"down", "err-disabled"}
	if err := rs.SetKeywords(ctx, "r1", want); err != nil {
		t.Fatal(err)
	}
	if got, _ := rs.Keywords(ctx, "r1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
	if err := rs.SetKeywords(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := rs.Keywords(ctx, "r1"); len(got) != 0 {
		t.Errorf("Keywords() after clear = %v", got)
	}
}
