package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "watcher.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateWatcher()...)
	errors = append(errors, c.validateValidation()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDashboard()...)

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if c.Paths.StateDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   c.Paths.StateDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.ProjectsDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.projects_dir",
			Value:   c.Paths.ProjectsDir,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateWatcher() []ValidationError {
	var errors []ValidationError

	if c.Watcher.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.poll_interval_ms",
			Value:   c.Watcher.PollIntervalMs,
			Message: "must be positive",
		})
	}
	if c.Watcher.MinValidLength <= 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.min_valid_length",
			Value:   c.Watcher.MinValidLength,
			Message: "must be positive",
		})
	}
	if c.Watcher.MinChangeDelta < 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.min_change_delta",
			Value:   c.Watcher.MinChangeDelta,
			Message: "must not be negative",
		})
	}
	if c.Watcher.StabilityPolls < 1 {
		errors = append(errors, ValidationError{
			Field:   "watcher.stability_polls",
			Value:   c.Watcher.StabilityPolls,
			Message: "must be at least 1",
		})
	}
	if c.Watcher.GraceIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.grace_interval_ms",
			Value:   c.Watcher.GraceIntervalMs,
			Message: "must not be negative",
		})
	}
	if c.Watcher.DefaultTimeoutMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "watcher.default_timeout_minutes",
			Value:   c.Watcher.DefaultTimeoutMinutes,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateValidation() []ValidationError {
	var errors []ValidationError

	if c.Validation.MinDocumentBytes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "validation.min_document_bytes",
			Value:   c.Validation.MinDocumentBytes,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateDashboard() []ValidationError {
	var errors []ValidationError

	if c.Dashboard.RefreshIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dashboard.refresh_interval_ms",
			Value:   c.Dashboard.RefreshIntervalMs,
			Message: "must be positive",
		})
	}
	if c.Dashboard.HistoryLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "dashboard.history_lines",
			Value:   c.Dashboard.HistoryLines,
			Message: "must not be negative",
		})
	}

	return errors
}
