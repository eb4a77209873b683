package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/netverify/pkg/util"
)

// DefaultRedisPrefix namespaces every key of a RedisStore.
const DefaultRedisPrefix = "netverify"

// RedisStore keeps snapshots in Redis so several operators share one
// history. Keys, for device d:
//
//	<prefix>:snapshot:d:current
//	<prefix>:snapshot:d:backup:<YYYYMMDD_HHMMSS>
//	<prefix>:snapshot:d:backups   sorted set of backup names by time
//	<prefix>:snapshot:d:master
//	<prefix>:snapshot:d:keywords  list
type RedisStore struct {
	client *redis.Client
	prefix string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRedisStore connects to addr and db.
func NewRedisStore(addr string, db int, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		prefix: prefix,
	}
}

// Connect tests the connection.
func (rs *RedisStore) Connect(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", util.ErrPersistenceFailure, err)
	}
	return nil
}

// Close closes the connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) key(device string, parts ...string) string {
	k := rs.prefix + ":snapshot:" + device
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (rs *RedisStore) now() time.Time {
	if rs.Now != nil {
		return rs.Now()
	}
	return time.Now()
}

func (rs *RedisStore) get(ctx context.Context, device, op, key string) (*Snapshot, error) {
	data, err := rs.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s: %w", key, util.ErrNotFound)
	}
	if err != nil {
		return nil, persistError(device, op, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, persistError(device, op, fmt.Errorf("parsing %s: %w", key, err))
	}
	return &snap, nil
}

// Load reads the current snapshot of device.
func (rs *RedisStore) Load(ctx context.Context, device string) (*Snapshot, error) {
	return rs.get(ctx, device, "load", rs.key(device, "current"))
}

// Save rotates the current snapshot and writes snap. The raw log is kept
// under the backup naming of the capture time.
func (rs *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if _, err := rs.Rotate(ctx, snap.Device); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return persistError(snap.Device, "save", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.key(snap.Device, "current"), data, 0)
	if len(snap.Raw) > 0 {
		pipe.Set(ctx, rs.key(snap.Device, "log", snap.CapturedAt.Format(BackupTimeFormat)), snap.RawLog(), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return persistError(snap.Device, "save", err)
	}
	return nil
}

// Rotate renames the current key to a timestamped backup key.
func (rs *RedisStore) Rotate(ctx context.Context, device string) (string, error) {
	cur := rs.key(device, "current")
	n, err := rs.client.Exists(ctx, cur).Result()
	if err != nil {
		return "", persistError(device, "rotate", err)
	}
	if n == 0 {
		return "", nil
	}

	now := rs.now()
	stamp := now.Format(BackupTimeFormat)
	name := stamp
	for i := 1; ; i++ {
		ok, err := rs.client.RenameNX(ctx, cur, rs.key(device, "backup", name)).Result()
		if err != nil {
			return "", persistError(device, "rotate", err)
		}
		if ok {
			break
		}
		name = fmt.Sprintf("%s_%d", stamp, i)
	}
	score := float64(now.UnixNano())
	if err := rs.client.ZAdd(ctx, rs.key(device, "backups"), &redis.Z{Score: score, Member: name}).Err(); err != nil {
		return "", persistError(device, "rotate", err)
	}
	return name, nil
}

// Master reads the pinned master snapshot.
func (rs *RedisStore) Master(ctx context.Context, device string) (*Snapshot, error) {
	return rs.get(ctx, device, "master", rs.key(device, "master"))
}

// SetMaster pins snap as the master of its device.
func (rs *RedisStore) SetMaster(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return persistError(snap.Device, "master", err)
	}
	if err := rs.client.Set(ctx, rs.key(snap.Device, "master"), data, 0).Err(); err != nil {
		return persistError(snap.Device, "master", err)
	}
	return nil
}

// Backups lists backup names, oldest first.
func (rs *RedisStore) Backups(ctx context.Context, device string) ([]string, error) {
	names, err := rs.client.ZRange(ctx, rs.key(device, "backups"), 0, -1).Result()
	if err != nil {
		return nil, persistError(device, "backups", err)
	}
	sortBackups(names)
	return names, nil
}

// LoadBackup reads one backup by name.
func (rs *RedisStore) LoadBackup(ctx context.Context, device, name string) (*Snapshot, error) {
	return rs.get(ctx, device, "load backup", rs.key(device, "backup", name))
}

// Keywords reads the keyword list of device.
func (rs *RedisStore) Keywords(ctx context.Context, device string) ([]string, error) {
	kws, err := rs.client.LRange(ctx, rs.key(device, "keywords"), 0, -1).Result()
	if err != nil {
		return nil, persistError(device, "keywords", err)
	}
	return kws, nil
}

// SetKeywords replaces the keyword list of device.
func (rs *RedisStore) SetKeywords(ctx context.Context, device string, keywords []string) error {
	key := rs.key(device, "keywords")
	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(keywords) > 0 {
		args := make([]interface{}, 0, len(keywords))
		for _, k := range keywords {
			args = append(args, k)
		}
		pipe.RPush(ctx, key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return persistError(device, "keywords", err)
	}
	return nil
}
