// Package config loads the gitrelay TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/thiagokokada/gitrelay/internal/git"
	"github.com/thiagokokada/gitrelay/internal/watch"
)

const DefaultAddr = "127.0.0.1:8880"

// Duration reads TOML strings such as "30s" or "2m".
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

type Config struct {
	Addr             string   `toml:"addr"`
	GitBinary        string   `toml:"git_binary"`
	QueueTimeout     Duration `toml:"queue_timeout"`
	WatchDebounce    Duration `toml:"watch_debounce"`
	LogLevel         string   `toml:"log_level"`
	NoFFMerge        bool     `toml:"no_ff_merge"`
	AutostashMessage string   `toml:"autostash_message"`
}

func Default() Config {
	return Config{
		Addr:             DefaultAddr,
		GitBinary:        "git",
		QueueTimeout:     Duration{git.DefaultQueueTimeout},
		WatchDebounce:    Duration{watch.DefaultDebounce},
		LogLevel:         "info",
		AutostashMessage: git.DefaultStashMessage,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/gitrelay/config.toml or its platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gitrelay", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", slog.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if _, err := cfg.Level(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
