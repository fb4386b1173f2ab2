// pattern: Functional Core

// Package config loads cgwt settings from ~/.config/cgwt/config.yaml.
// A missing file yields defaults; a malformed file is an error.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the user-editable configuration.
type Config struct {
	// Assistant is the coding assistant binary launched inside sessions.
	Assistant string `yaml:"assistant"`
	// BaseBranch is the default base for brand-new branches. Empty means
	// the repository's current HEAD.
	BaseBranch string `yaml:"base_branch"`
	// CommandTimeoutSecs bounds every git/tmux invocation.
	CommandTimeoutSecs int `yaml:"command_timeout_secs"`
	// Retry controls backoff for idempotent external calls.
	Retry RetryConfig `yaml:"retry"`
	// ScanPaths are directories searched for repositories by `cgwt list`.
	ScanPaths []string `yaml:"scan_paths"`
	// LogLevel is the minimum level written to the log file.
	LogLevel string `yaml:"log_level"`
}

// RetryConfig mirrors execx.RetryConfig in YAML-friendly units.
type RetryConfig struct {
	Attempts    int `yaml:"attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// LookPathFunc is the function signature for locating executables.
type LookPathFunc func(name string) (string, error)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Assistant:          "claude",
		CommandTimeoutSecs: 30,
		Retry:              RetryConfig{Attempts: 3, BaseDelayMs: 250},
		LogLevel:           "info",
	}
}

// Load reads the config from the default location.
func Load() (Config, error) {
	return LoadFrom(configPath())
}

// LoadFromDir reads config.yaml from an explicit directory.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads and merges the config file at path over the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Assistant == "" {
		cfg.Assistant = "claude"
	}
	if cfg.CommandTimeoutSecs <= 0 {
		cfg.CommandTimeoutSecs = 30
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BaseDelayMs <= 0 {
		cfg.Retry.BaseDelayMs = 250
	}
	return cfg, nil
}

// CommandTimeout returns the per-command timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSecs) * time.Second
}

// RetryBaseDelay returns the retry base delay as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// ValidateRuntime checks that the external tools cgwt drives are installed.
func (c *Config) ValidateRuntime() error {
	return c.ValidateRuntimeWith(exec.LookPath)
}

// ValidateRuntimeWith checks tool availability with an injected lookup.
func (c *Config) ValidateRuntimeWith(lookPath LookPathFunc) error {
	if _, err := lookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH: %w", err)
	}
	if _, err := lookPath("tmux"); err != nil {
		return fmt.Errorf("tmux not found in PATH (install it with your package manager, e.g. 'brew install tmux' or 'apt install tmux'): %w", err)
	}
	return nil
}

// ResolveScanPaths expands ~ in configured scan paths.
func (c *Config) ResolveScanPaths() []string {
	home, err := os.UserHomeDir()
	resolved := make([]string, 0, len(c.ScanPaths))
	for _, p := range c.ScanPaths {
		if err == nil && strings.HasPrefix(p, "~/") {
			p = filepath.Join(home, p[2:])
		}
		resolved = append(resolved, p)
	}
	return resolved
}

func configPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cgwt", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "cgwt", "config.yaml")
	}
	return filepath.Join(home, ".config", "cgwt", "config.yaml")
}
