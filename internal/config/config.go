// Package config defines the specflow configuration, its defaults, and the
// viper bindings that load it from the config file and environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete specflow configuration
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Watcher    WatcherConfig    `mapstructure:"watcher"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// PathsConfig controls where specflow stores and finds data
type PathsConfig struct {
	// StateDir is where per-project status records live.
	// Supports ~ expansion. Default: ~/.local/state/specflow
	StateDir string `mapstructure:"state_dir"`
	// ProjectsDir is the directory holding one subdirectory per project,
	// each with its docs/ artifact tree. Default: current directory.
	ProjectsDir string `mapstructure:"projects_dir"`
	// WorkflowFile optionally points at a YAML workflow definition that
	// replaces the built-in agent/phase tables. Empty means built-in.
	WorkflowFile string `mapstructure:"workflow_file"`
}

// WatcherConfig controls the completion detector thresholds
type WatcherConfig struct {
	// PollIntervalMs is how often to re-read the watched file (in milliseconds)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MinValidLength is the minimum byte length for content to count as real
	MinValidLength int `mapstructure:"min_valid_length"`
	// MinChangeDelta is the minimum byte delta for a change to count as substantial
	MinChangeDelta int `mapstructure:"min_change_delta"`
	// StabilityPolls is how many consecutive identical polls settle a change
	StabilityPolls int `mapstructure:"stability_polls"`
	// GraceIntervalMs is the re-read delay on the pre-existing-content path (in milliseconds)
	GraceIntervalMs int `mapstructure:"grace_interval_ms"`
	// DefaultTimeoutMinutes bounds a watch when the caller gives no timeout
	DefaultTimeoutMinutes int `mapstructure:"default_timeout_minutes"`
}

// ValidationConfig controls artifact validation thresholds
type ValidationConfig struct {
	// MinDocumentBytes is the minimum size for a generated document to pass
	// review-phase validation
	MinDocumentBytes int `mapstructure:"min_document_bytes"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled turns file logging on or off
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level to log: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
}

// DashboardConfig controls the TUI dashboard
type DashboardConfig struct {
	// RefreshIntervalMs is the fallback periodic reload interval (in milliseconds);
	// filesystem events trigger reloads sooner
	RefreshIntervalMs int `mapstructure:"refresh_interval_ms"`
	// ShowHistory shows the history tail beneath the phase grid
	ShowHistory bool `mapstructure:"show_history"`
	// HistoryLines is how many history entries the tail shows
	HistoryLines int `mapstructure:"history_lines"`
}

// PollInterval returns the watcher poll interval as a duration
func (c *WatcherConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// GraceInterval returns the watcher grace interval as a duration
func (c *WatcherConfig) GraceInterval() time.Duration {
	return time.Duration(c.GraceIntervalMs) * time.Millisecond
}

// DefaultTimeout returns the default watch timeout as a duration
func (c *WatcherConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMinutes) * time.Minute
}

// RefreshInterval returns the dashboard refresh interval as a duration
func (c *DashboardConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			StateDir:    "~/.local/state/specflow",
			ProjectsDir: ".",
		},
		Watcher: WatcherConfig{
			PollIntervalMs:        500,
			MinValidLength:        100,
			MinChangeDelta:        50,
			StabilityPolls:        3,
			GraceIntervalMs:       200,
			DefaultTimeoutMinutes: 30,
		},
		Validation: ValidationConfig{
			MinDocumentBytes: 500,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Dashboard: DashboardConfig{
			RefreshIntervalMs: 2000,
			ShowHistory:       true,
			HistoryLines:      8,
		},
	}
}

// SetDefaults registers all default values with viper
func SetDefaults() {
	defaults := Default()

	// Path defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
	viper.SetDefault("paths.projects_dir", defaults.Paths.ProjectsDir)
	viper.SetDefault("paths.workflow_file", defaults.Paths.WorkflowFile)

	// Watcher defaults
	viper.SetDefault("watcher.poll_interval_ms", defaults.Watcher.PollIntervalMs)
	viper.SetDefault("watcher.min_valid_length", defaults.Watcher.MinValidLength)
	viper.SetDefault("watcher.min_change_delta", defaults.Watcher.MinChangeDelta)
	viper.SetDefault("watcher.stability_polls", defaults.Watcher.StabilityPolls)
	viper.SetDefault("watcher.grace_interval_ms", defaults.Watcher.GraceIntervalMs)
	viper.SetDefault("watcher.default_timeout_minutes", defaults.Watcher.DefaultTimeoutMinutes)

	// Validation defaults
	viper.SetDefault("validation.min_document_bytes", defaults.Validation.MinDocumentBytes)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Dashboard defaults
	viper.SetDefault("dashboard.refresh_interval_ms", defaults.Dashboard.RefreshIntervalMs)
	viper.SetDefault("dashboard.show_history", defaults.Dashboard.ShowHistory)
	viper.SetDefault("dashboard.history_lines", defaults.Dashboard.HistoryLines)
}

// Load unmarshals the current viper state into a validated Config
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the directory holding the specflow config file,
// typically ~/.config/specflow
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "specflow"), nil
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// StateDir returns the expanded state directory path
func (c *Config) StateDir() string {
	return ExpandPath(c.Paths.StateDir)
}

// ProjectsDir returns the expanded projects directory path
func (c *Config) ProjectsDir() string {
	return ExpandPath(c.Paths.ProjectsDir)
}
