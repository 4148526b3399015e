// Package config loads gitstate settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendFiles = "files"
	BackendCLI   = "cli"
	BackendGoGit = "gogit"
)

// Backends lists the accepted values for Config.Backend.
var Backends = []string{BackendFiles, BackendCLI, BackendGoGit}

type Config struct {
	Backend        string   `toml:"backend"`
	GitBinary      string   `toml:"git_binary"`
	CommandTimeout Duration `toml:"command_timeout"`
	Remote         string   `toml:"remote"`
	LogLevel       string   `toml:"log_level"`

	Watch WatchConfig `toml:"watch"`
	Diff  DiffConfig  `toml:"diff"`
}

type WatchConfig struct {
	Poll         bool     `toml:"poll"`
	PollInterval Duration `toml:"poll_interval"`
	Debounce     Duration `toml:"debounce"`
}

type DiffConfig struct {
	Color string `toml:"color"` // "auto", "always" or "never"
	Style string `toml:"style"` // chroma style; empty picks one from the desktop theme
}

// Duration accepts Go duration strings ("1s", "350ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Backend:        BackendFiles,
		GitBinary:      "git",
		CommandTimeout: Duration{10 * time.Second},
		Remote:         "origin",
		LogLevel:       "info",
		Watch: WatchConfig{
			PollInterval: Duration{time.Second},
			Debounce:     Duration{350 * time.Millisecond},
		},
		Diff: DiffConfig{Color: "auto"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/gitstate/config.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "gitstate", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Keys in the file that match no setting are returned so the caller can
// report them once logging is configured.
func Load(path string) (Config, []string, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil, nil
		}
		return Default(), nil, fmt.Errorf("load config %s: %w", path, err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	if err := cfg.Validate(); err != nil {
		return Default(), nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, unknown, nil
}

func (c Config) Validate() error {
	var errs []error
	valid := false
	for _, b := range Backends {
		if c.Backend == b {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", ")))
	}
	if c.CommandTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("command_timeout must not be negative"))
	}
	if c.Watch.PollInterval.Duration < 0 {
		errs = append(errs, fmt.Errorf("watch.poll_interval must not be negative"))
	}
	if c.Watch.Debounce.Duration < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	switch c.Diff.Color {
	case "", "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("unknown diff.color %q", c.Diff.Color))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level value onto slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
