package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// DaemonConfig configures srmd.
type DaemonConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // auto-discovered when empty
	SocketPath string `mapstructure:"socket_path"`
	PIDPath    string `mapstructure:"pid_path"`
	StatusPath string `mapstructure:"status_path"`
}

// Config is the resolved configuration.
type Config struct {
	Retention struct {
		Default string `mapstructure:"default"`
	} `mapstructure:"retention"`
	Storage struct {
		Dir      string `mapstructure:"dir"`
		Metadata string `mapstructure:"metadata"`
	} `mapstructure:"storage"`
	Sweeper struct {
		Interval    string `mapstructure:"interval"`
		Schedule    string `mapstructure:"schedule"`
		Watch       bool   `mapstructure:"watch"`
		MetricsPath string `mapstructure:"metrics_path"`
	} `mapstructure:"sweeper"`
	History struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
}

// DefaultRetention returns the parsed retention.default.
func (c *Config) DefaultRetention() (time.Duration, error) {
	return types.ParseDuration(c.Retention.Default)
}

// SweepInterval returns the parsed sweeper.interval.
func (c *Config) SweepInterval() (time.Duration, error) {
	return types.ParseDuration(c.Sweeper.Interval)
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() logging.Config {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if size, err := types.ParseSize(c.Logging.Rotation.MaxSize); err == nil {
		rot.MaxSize = size
	}
	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}
}

// validate checks every value whose syntax matters.
func (c *Config) validate() error {
	for key, value := range map[string]string{
		"retention.default": c.Retention.Default,
		"sweeper.interval":  c.Sweeper.Interval,
		"sweeper.schedule":  c.Sweeper.Schedule,
		"logging.level":     c.Logging.Level,
	} {
		if err := validators[key](value); err != nil {
			return types.E(types.InvalidArgument, "config", key, err)
		}
	}
	if c.History.RetentionDays < 0 {
		return types.E(types.InvalidArgument, "config", "history.retention_days", types.ErrNegativeValue)
	}
	return nil
}

var errUnknownKey = errors.New("unknown configuration key")

func validDuration(s string) error {
	_, err := types.ParseDuration(s)
	return err
}

func validBool(s string) error {
	_, err := strconv.ParseBool(s)
	return err
}

func anyString(string) error { return nil }

// validators lists every key Set accepts.
var validators = map[string]func(string) error{
	"retention.default": validDuration,
	"storage.dir":       anyString,
	"storage.metadata":  anyString,
	"sweeper.interval":  validDuration,
	"sweeper.schedule": func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		_, err := cron.ParseStandard(s)
		return err
	},
	"sweeper.watch":        validBool,
	"sweeper.metrics_path": anyString,
	"history.enabled":      validBool,
	"history.path":         anyString,
	"history.retention_days": func(s string) error {
		n, err := strconv.Atoi(s)
		if err == nil && n < 0 {
			return types.ErrNegativeValue
		}
		return err
	},
	"logging.level": func(s string) error {
		_, err := logging.ParseLevel(s)
		return err
	},
	"logging.path":       anyString,
	"daemon.binary_path": anyString,
	"daemon.socket_path": anyString,
	"daemon.pid_path":    anyString,
	"daemon.status_path": anyString,
}

// Keys returns the keys Set accepts, sorted.
func Keys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Store is the key-value view of the configuration.
type Store struct {
	v    *viper.Viper
	path string
}

// Open reads the configuration file at path, or the default location when
// path is empty. A missing file is not an error.
func Open(path string) (*Store, error) {
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, types.E(types.ParseError, "read config", path, err)
		}
	}
	return &Store{v: v, path: path}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retention.default", DefaultRetention)
	v.SetDefault("storage.dir", DefaultStorageDir())
	v.SetDefault("storage.metadata", DefaultMetadataPath())
	v.SetDefault("sweeper.interval", DefaultSweepInterval)
	v.SetDefault("sweeper.schedule", "")
	v.SetDefault("sweeper.watch", true)
	v.SetDefault("sweeper.metrics_path", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultHistoryRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", DefaultLogPath())
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"sweeper": "info",
		"daemon":  "info",
	})

	v.SetDefault("daemon.binary_path", "")
	v.SetDefault("daemon.socket_path", DefaultSocketPath())
	v.SetDefault("daemon.pid_path", DefaultPIDPath())
	v.SetDefault("daemon.status_path", DefaultStatusPath())
}

// Path returns the configuration file location.
func (s *Store) Path() string {
	return s.path
}

// Viper exposes the underlying viper instance so commands can bind flags.
func (s *Store) Viper() *viper.Viper {
	return s.v
}

// Get returns the value for key and whether it has a non-empty value.
func (s *Store) Get(key string) (string, bool) {
	key = strings.ToLower(key)
	if !s.v.IsSet(key) {
		return "", false
	}
	val := s.v.GetString(key)
	return val, val != ""
}

// Set validates value for key, applies it and writes it to the
// configuration file. Only keys already in the file and key are written.
func (s *Store) Set(key, value string) error {
	key = strings.ToLower(key)
	check, ok := validators[key]
	if !ok {
		return types.E(types.InvalidArgument, "config set", key, errUnknownKey)
	}
	if err := check(value); err != nil {
		return types.E(types.InvalidArgument, "config set", key, err)
	}

	file := viper.New()
	file.SetConfigFile(s.path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.E(types.ParseError, "config set", s.path, err)
		}
	}
	file.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.E(types.FilesystemError, "config set", s.path, err)
	}
	if err := file.WriteConfigAs(s.path); err != nil {
		return types.E(types.PersistenceFailed, "config set", s.path, err)
	}
	s.v.Set(key, value)
	return nil
}

// Config decodes, validates and expands the current settings.
func (s *Store) Config() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, types.E(types.ParseError, "config", s.path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	fallback := map[*string]string{
		&cfg.Storage.Dir:       DefaultStorageDir(),
		&cfg.Storage.Metadata:  DefaultMetadataPath(),
		&cfg.History.Path:      DefaultHistoryPath(),
		&cfg.Logging.Path:      DefaultLogPath(),
		&cfg.Daemon.SocketPath: DefaultSocketPath(),
		&cfg.Daemon.PIDPath:    DefaultPIDPath(),
		&cfg.Daemon.StatusPath: DefaultStatusPath(),
	}
	for p, def := range fallback {
		if *p == "" {
			*p = def
		}
	}

	for _, p := range []*string{
		&cfg.Storage.Dir, &cfg.Storage.Metadata, &cfg.History.Path,
		&cfg.Sweeper.MetricsPath, &cfg.Logging.Path,
		&cfg.Daemon.BinaryPath, &cfg.Daemon.SocketPath, &cfg.Daemon.PIDPath, &cfg.Daemon.StatusPath,
	} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// Load opens the default configuration and decodes it.
func Load() (*Config, error) {
	s, err := Open("")
	if err != nil {
		return nil, err
	}
	return s.Config()
}

// ConfigDir returns $XDG_CONFIG_HOME/srm, or ~/.config/srm when unset.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ErrConfigExists is returned by WriteDefault when the file is present.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes a commented default configuration to path.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# srm configuration

# Retention applied when "srm rm" is called without --duration.
# Units: s, m, h, d, w.
retention:
  default: %s

# Safe storage. Defaults live under $XDG_DATA_HOME/srm.
storage:
  # dir: %s
  # metadata: %s

# Periodic sweeping in srmd
sweeper:
  interval: %s
  # Standard 5-field cron expression; overrides interval when set.
  schedule: ""
  # Sweep early when the metadata file changes.
  watch: true
  # Prometheus textfile written after every sweep.
  metrics_path: ""

# Operation journal
history:
  enabled: true
  retention_days: %d

logging:
  # Log level: debug, info, warn, error
  level: info
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    engine: info
    sweeper: info
    daemon: info

daemon:
  # Path to srmd; found next to srm or on PATH when empty.
  binary_path: ""
`, DefaultRetention, DefaultStorageDir(), DefaultMetadataPath(), DefaultSweepInterval, DefaultHistoryRetentionDays)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
