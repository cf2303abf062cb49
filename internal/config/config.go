package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/outreach/internal/scheduler"
)

// Global represents ~/.outreach/config.toml.
type Global struct {
	DefaultWorkspace string `toml:"default_workspace"`
}

// Duration is a time.Duration written as a Go duration string ("1s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Scheduler is the [scheduler] table.
type Scheduler struct {
	TickInterval       Duration `toml:"tick_interval"`
	MinSendDelay       Duration `toml:"min_send_delay"`
	MaxSendDelay       Duration `toml:"max_send_delay"`
	FailureProbability float64  `toml:"failure_probability"`
	FailureReason      string   `toml:"failure_reason"`
}

// Daemon is the [daemon] table.
type Daemon struct {
	MetricsAddr string `toml:"metrics_addr"` // empty disables the endpoint
	LogLevel    string `toml:"log_level"`
}

// Seed is the [seed] table.
type Seed struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty = built-in demo data
}

// Config represents a workspace's config.toml.
type Config struct {
	Scheduler Scheduler `toml:"scheduler"`
	Daemon    Daemon    `toml:"daemon"`
	Seed      Seed      `toml:"seed"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	d := scheduler.DefaultConfig()
	return Config{
		Scheduler: Scheduler{
			TickInterval:       Duration{d.TickInterval},
			MinSendDelay:       Duration{d.MinSendDelay},
			MaxSendDelay:       Duration{d.MaxSendDelay},
			FailureProbability: d.FailureProbability,
			FailureReason:      d.FailureReason,
		},
		Daemon: Daemon{LogLevel: "info"},
		Seed:   Seed{Enabled: true},
	}
}

// SchedulerConfig converts the [scheduler] table.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		TickInterval:       c.Scheduler.TickInterval.Duration,
		MinSendDelay:       c.Scheduler.MinSendDelay.Duration,
		MaxSendDelay:       c.Scheduler.MaxSendDelay.Duration,
		FailureProbability: c.Scheduler.FailureProbability,
		FailureReason:      c.Scheduler.FailureReason,
	}
}

// Validate checks the settings that would make the daemon misbehave.
func (c Config) Validate() error {
	if err := c.SchedulerConfig().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	switch c.Daemon.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("daemon: unknown log level %q", c.Daemon.LogLevel)
	}
	return nil
}

// Load reads a workspace config. A missing file yields Default(); keys
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadGlobal reads the global config. Returns an error if the file is missing.
func LoadGlobal(path string) (*Global, error) {
	var g Global
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Save writes v as TOML to path, creating parent dirs as needed.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
