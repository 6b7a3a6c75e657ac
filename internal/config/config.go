// Package config loads and saves the server's YAML configuration.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig controls log output.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "console" for human-readable output or "json".
	Format string `yaml:"format" json:"format"`
}

// ReminderConfig controls the meeting reminder scheduler.
type ReminderConfig struct {
	// LeadMinutes is how long before a meeting the starting-soon event fires.
	LeadMinutes int `yaml:"lead_minutes" json:"lead_minutes"`
	// Interval is a cron "@every" duration for the reminder sweep.
	Interval string `yaml:"interval" json:"interval"`
}

// MeetingsConfig holds meeting defaults.
type MeetingsConfig struct {
	// DefaultDurationMin applies when a meeting is created without an end time.
	DefaultDurationMin int `yaml:"default_duration_min" json:"default_duration_min"`
}

// ImportConfig controls calendar imports from a feed URL.
type ImportConfig struct {
	// FetchTimeout bounds a single feed download.
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`
	// AllowPrivateHosts lets feed URLs point at loopback, private and
	// link-local addresses. Leave off unless feeds live on an internal
	// network.
	AllowPrivateHosts bool `yaml:"allow_private_hosts" json:"allow_private_hosts"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StaticDir is served at / when set.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	Log      LogConfig      `yaml:"log" json:"log"`
	Reminder ReminderConfig `yaml:"reminder" json:"reminder"`
	Meetings MeetingsConfig `yaml:"meetings" json:"meetings"`
	Import   ImportConfig   `yaml:"import" json:"import"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8099",
		DataDir:   "/data",
		StaticDir: "",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Reminder: ReminderConfig{
			LeadMinutes: 10,
			Interval:    "1m",
		},
		Meetings: MeetingsConfig{
			DefaultDurationMin: 30,
		},
		Import: ImportConfig{
			FetchTimeout: "10s",
		},
	}
}

// Normalize fills in missing or invalid values with defaults so partially
// filled files still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		c.Log.Level = def.Log.Level
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		c.Log.Format = def.Log.Format
	}
	if c.Reminder.LeadMinutes <= 0 {
		c.Reminder.LeadMinutes = def.Reminder.LeadMinutes
	}
	if d, err := time.ParseDuration(c.Reminder.Interval); err != nil || d < time.Second {
		c.Reminder.Interval = def.Reminder.Interval
	}
	if c.Meetings.DefaultDurationMin <= 0 {
		c.Meetings.DefaultDurationMin = def.Meetings.DefaultDurationMin
	}
	if d, err := time.ParseDuration(c.Import.FetchTimeout); err != nil || d <= 0 {
		c.Import.FetchTimeout = def.Import.FetchTimeout
	}
}

// ReminderInterval returns the parsed reminder sweep interval.
func (c *Config) ReminderInterval() time.Duration {
	d, err := time.ParseDuration(c.Reminder.Interval)
	if err != nil || d < time.Second {
		return time.Minute
	}
	return d
}

// FetchTimeout returns the parsed feed download timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Import.FetchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// DatabasePath returns the SQLite file location inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "kaiboard.db")
}

// Load reads configuration from the YAML file at path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the file is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".kaiboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
