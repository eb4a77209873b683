package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newtron-network/netverify/pkg/util"
)

// BackupTimeFormat stamps rotated snapshots.
const BackupTimeFormat = "20060102_150405"

// Store persists snapshots. Each device has at most one current snapshot and
// one master; Save rotates the current snapshot to a timestamped backup
// before overwriting it. Missing snapshots are util.ErrNotFound.
type Store interface {
	Load(ctx context.Context, device string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	// Rotate moves the current snapshot to a backup and returns the
	// backup's name, or "" when there was nothing to rotate.
	Rotate(ctx context.Context, device string) (string, error)
	Master(ctx context.Context, device string) (*Snapshot, error)
	SetMaster(ctx context.Context, snap *Snapshot) error
	Backups(ctx context.Context, device string) ([]string, error)
	LoadBackup(ctx context.Context, device, name string) (*Snapshot, error)
	Keywords(ctx context.Context, device string) ([]string, error)
	SetKeywords(ctx context.Context, device string, keywords []string) error
}

// Previous returns the most recent backup of device.
func Previous(ctx context.Context, st Store, device string) (*Snapshot, error) {
	names, err := st.Backups(ctx, device)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no backup for %s: %w", device, util.ErrNotFound)
	}
	sortBackups(names)
	return st.LoadBackup(ctx, device, names[len(names)-1])
}

// sortBackups orders backup names by stamp, then by numeric suffix, so
// 20240301_093000_10 follows 20240301_093000_9.
func sortBackups(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		si, ni := splitBackup(names[i])
		sj, nj := splitBackup(names[j])
		if si != sj {
			return si < sj
		}
		return ni < nj
	})
}

// splitBackup splits a backup name into its stamp and suffix; no suffix is 0.
func splitBackup(name string) (string, int) {
	if len(name) <= len(BackupTimeFormat)+1 {
		return name, 0
	}
	n, err := strconv.Atoi(name[len(BackupTimeFormat)+1:])
	if err != nil {
		return name, 0
	}
	return name[:len(BackupTimeFormat)], n
}

func persistError(device, op string, err error) error {
	if errors.Is(err, util.ErrNotFound) {
		return err
	}
	return util.NewDeviceError(device, util.KindPersistence, op, err)
}

// FileStore keeps snapshots as JSON files in one directory:
//
//	<name>.json                   current
//	<name>_<YYYYMMDD_HHMMSS>.json backup
//	<name>_master.json            master
//	<name>_<YYYYMMDD_HHMMSS>.log  raw text of a capture
//	<name>_keywords.json          keyword list
//
// where <name> is the sanitized device name.
type FileStore struct {
	Dir string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", util.ErrPersistenceFailure, dir, err)
	}
	return &FileStore{Dir: dir}, nil
}

func (fs *FileStore) now() time.Time {
	if fs.Now != nil {
		return fs.Now()
	}
	return time.Now()
}

func (fs *FileStore) path(device, suffix string) string {
	return filepath.Join(fs.Dir, util.SanitizeFilename(device)+suffix)
}

// Load reads the current snapshot of device.
func (fs *FileStore) Load(ctx context.Context, device string) (*Snapshot, error) {
	snap, err := readSnapshot(fs.path(device, ".json"))
	if err != nil {
		return nil, persistError(device, "load", err)
	}
	return snap, nil
}

// Save rotates the current snapshot, then writes snap and its raw log.
func (fs *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if _, err := fs.Rotate(ctx, snap.Device); err != nil {
		return err
	}
	if err := writeJSON(fs.path(snap.Device, ".json"), snap); err != nil {
		return persistError(snap.Device, "save", err)
	}
	if len(snap.Raw) > 0 {
		logPath := fs.path(snap.Device, "_"+snap.CapturedAt.Format(BackupTimeFormat)+".log")
		if err := os.WriteFile(logPath, []byte(snap.RawLog()), 0644); err != nil {
			return persistError(snap.Device, "save", err)
		}
	}
	util.WithDevice(snap.Device).Debugf("snapshot saved to %s", fs.Dir)
	return nil
}

// Rotate renames the current snapshot to <name>_<timestamp>.json. A second
// rotation within the same second gets a numeric suffix.
func (fs *FileStore) Rotate(ctx context.Context, device string) (string, error) {
	cur := fs.path(device, ".json")
	if _, err := os.Stat(cur); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	stamp := fs.now().Format(BackupTimeFormat)
	name := stamp
	for i := 1; ; i++ {
		if _, err := os.Stat(fs.path(device, "_"+name+".json")); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s_%d", stamp, i)
	}
	if err := os.Rename(cur, fs.path(device, "_"+name+".json")); err != nil {
		return "", persistError(device, "rotate", err)
	}
	return name, nil
}

// Master reads the pinned master snapshot of device.
func (fs *FileStore) Master(ctx context.Context, device string) (*Snapshot, error) {
	snap, err := readSnapshot(fs.path(device, "_master.json"))
	if err != nil {
		return nil, persistError(device, "master", err)
	}
	return snap, nil
}

// SetMaster pins snap as the master of its device, replacing any previous
// master.
func (fs *FileStore) SetMaster(ctx context.Context, snap *Snapshot) error {
	if err := writeJSON(fs.path(snap.Device, "_master.json"), snap); err != nil {
		return persistError(snap.Device, "master", err)
	}
	return nil
}

// Backups lists the backup names of device, oldest first.
func (fs *FileStore) Backups(ctx context.Context, device string) ([]string, error) {
	prefix := util.SanitizeFilename(device) + "_"
	entries, err := os.ReadDir(fs.Dir)
	if err != nil {
		return nil, persistError(device, "backups", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ".json") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(n, prefix), ".json")
		if isBackupStamp(stamp) {
			names = append(names, stamp)
		}
	}
	sortBackups(names)
	return names, nil
}

// LoadBackup reads one backup by the name Backups returned.
func (fs *FileStore) LoadBackup(ctx context.Context, device, name string) (*Snapshot, error) {
	snap, err := readSnapshot(fs.path(device, "_"+name+".json"))
	if err != nil {
		return nil, persistError(device, "load backup", err)
	}
	return snap, nil
}

// Keywords reads the keyword list of device; none is an empty list.
func (fs *FileStore) Keywords(ctx context.Context, device string) ([]string, error) {
	data, err := os.ReadFile(fs.path(device, "_keywords.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistError(device, "keywords", err)
	}
	var kws []string
	if err := json.Unmarshal(data, &kws); err != nil {
		return nil, persistError(device, "keywords", err)
	}
	return kws, nil
}

// SetKeywords replaces the keyword list of device.
func (fs *FileStore) SetKeywords(ctx context.Context, device string, keywords []string) error {
	if err := writeJSON(fs.path(device, "_keywords.json"), keywords); err != nil {
		return persistError(device, "keywords", err)
	}
	return nil
}

// isBackupStamp accepts YYYYMMDD_HHMMSS with an optional _N suffix.
func isBackupStamp(s string) bool {
	if len(s) < len(BackupTimeFormat) {
		return false
	}
	if _, err := time.Parse(BackupTimeFormat, s[:len(BackupTimeFormat)]); err != nil {
		return false
	}
	rest := s[len(BackupTimeFormat):]
	if rest == "" {
		return true
	}
	if rest[0] != '_' || len(rest) == 1 {
		return false
	}
	for _, r := range rest[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), util.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}

// writeJSON writes v through a temporary file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
