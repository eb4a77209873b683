// Package settings manages persistent user settings for the netverify CLI.
// Values come from ~/.netverify/settings.json and may be overridden by
// NETVERIFY_<KEY> environment variables.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newtron-network/netverify/pkg/util"
)

// EnvPrefix prefixes environment overrides, e.g. NETVERIFY_WORKERS=16.
const EnvPrefix = "NETVERIFY"

// Store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Defaults applied by the getters when a setting is unset.
const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
	DefaultWorkers        = 8
	DefaultMaxHops        = 15
)

// Settings holds persistent user preferences
type Settings struct {
	// Inventory is the device list used when --inventory is not given.
	Inventory string `json:"inventory,omitempty" mapstructure:"inventory"`

	SnapshotDir string `json:"snapshot_dir,omitempty" mapstructure:"snapshot_dir"`

	// Store selects the snapshot backend: "file" (default) or "redis".
	Store     string `json:"store,omitempty" mapstructure:"store"`
	RedisAddr string `json:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisDB   int    `json:"redis_db,omitempty" mapstructure:"redis_db"`

	AuditLog string `json:"audit_log,omitempty" mapstructure:"audit_log"`

	// Timeouts in seconds.
	DialTimeout    int `json:"dial_timeout,omitempty" mapstructure:"dial_timeout"`
	CommandTimeout int `json:"command_timeout,omitempty" mapstructure:"command_timeout"`

	Workers int `json:"workers,omitempty" mapstructure:"workers"`
	MaxHops int `json:"max_hops,omitempty" mapstructure:"max_hops"`
}

// Keys lists every setting name, as used in the file, the environment and
// `netverify settings set`.
func Keys() []string {
	return []string{
		"inventory", "snapshot_dir", "store", "redis_addr", "redis_db",
		"audit_log", "dial_timeout", "command_timeout", "workers", "max_hops",
	}
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".netverify"
	}
	return filepath.Join(home, ".netverify")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(baseDir(), "settings.json")
}

// Load reads settings from the default location with environment overrides.
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from path with environment overrides. A missing
// file yields empty settings.
func LoadFrom(path string) (*Settings, error) {
	return load(path, true)
}

// LoadFile reads only the file at path. Use it when the settings are going
// to be saved back, so environment overrides are not persisted.
func LoadFile(path string) (*Settings, error) {
	return load(path, false)
}

func load(path string, env bool) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for k, val := range (&Settings{}).Map() {
		v.SetDefault(k, val)
	}
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Set assigns one setting by key. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	atoi := func(dst *int) error {
		if value == "" {
			*dst = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		*dst = n
		return nil
	}

	switch key {
	case "inventory":
		s.Inventory = value
	case "snapshot_dir":
		s.SnapshotDir = value
	case "store":
		s.Store = strings.ToLower(value)
	case "redis_addr":
		s.RedisAddr = value
	case "redis_db":
		return atoi(&s.RedisDB)
	case "audit_log":
		s.AuditLog = value
	case "dial_timeout":
		return atoi(&s.DialTimeout)
	case "command_timeout":
		return atoi(&s.CommandTimeout)
	case "workers":
		return atoi(&s.Workers)
	case "max_hops":
		return atoi(&s.MaxHops)
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}

// Map returns every setting as key to value for display. Unset values are
// empty strings.
func (s *Settings) Map() map[string]string {
	itoa := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	return map[string]string{
		"inventory":       s.Inventory,
		"snapshot_dir":    s.SnapshotDir,
		"store":           s.Store,
		"redis_addr":      s.RedisAddr,
		"redis_db":        itoa(s.RedisDB),
		"audit_log":       s.AuditLog,
		"dial_timeout":    itoa(s.DialTimeout),
		"command_timeout": itoa(s.CommandTimeout),
		"workers":         itoa(s.Workers),
		"max_hops":        itoa(s.MaxHops),
	}
}

// Validate checks value ranges and cross-field requirements.
func (s *Settings) Validate() error {
	v := &util.ValidationBuilder{}
	store := s.GetStore()
	v.Add(store == StoreFile || store == StoreRedis, fmt.Sprintf("store must be %q or %q, got %q", StoreFile, StoreRedis, s.Store))
	v.Add(store != StoreRedis || s.RedisAddr != "", "store redis requires redis_addr")
	v.Add(s.MaxHops <= 64, fmt.Sprintf("max_hops %d exceeds 64", s.MaxHops))
	return v.Build()
}

// GetSnapshotDir returns the snapshot directory (with fallback)
func (s *Settings) GetSnapshotDir() string {
	if s.SnapshotDir != "" {
		return s.SnapshotDir
	}
	return filepath.Join(baseDir(), "snapshots")
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return filepath.Join(baseDir(), "audit.log")
}

// GetStore returns the snapshot backend (with fallback)
func (s *Settings) GetStore() string {
	if s.Store != "" {
		return s.Store
	}
	return StoreFile
}

func seconds(n int, def time.Duration) time.Duration {
	if n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// GetDialTimeout returns the connection timeout (with fallback)
func (s *Settings) GetDialTimeout() time.Duration {
	return seconds(s.DialTimeout, DefaultDialTimeout)
}

// GetCommandTimeout returns the per-command wait ceiling (with fallback)
func (s *Settings) GetCommandTimeout() time.Duration {
	return seconds(s.CommandTimeout, DefaultCommandTimeout)
}

// GetWorkers returns the device concurrency (with fallback)
func (s *Settings) GetWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return DefaultWorkers
}

// GetMaxHops returns the traversal bound (with fallback)
func (s *Settings) GetMaxHops() int {
	if s.MaxHops > 0 {
		return s.MaxHops
	}
	return DefaultMaxHops
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
