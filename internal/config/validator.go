package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "slots.pool_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
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

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Slots.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "slots.pool_size",
			Value:   c.Slots.PoolSize,
			Message: "must be at least 1",
		})
	}

	if c.Pipeline.TickIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.tick_interval_ms",
			Value:   c.Pipeline.TickIntervalMs,
			Message: "must be at least 1",
		})
	}

	if c.Loop.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "loop.max_iterations",
			Value:   c.Loop.MaxIterations,
			Message: "must be at least 1",
		})
	}
	if c.Loop.OutputLimitBytes < 1 {
		errors = append(errors, ValidationError{
			Field:   "loop.output_limit_bytes",
			Value:   c.Loop.OutputLimitBytes,
			Message: "must be at least 1",
		})
	}
	if c.Loop.HistoryWindow < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.history_window",
			Value:   c.Loop.HistoryWindow,
			Message: "must not be negative",
		})
	}

	if c.Checks.RunBuild && len(c.Checks.BuildCommand) == 0 {
		errors = append(errors, ValidationError{
			Field:   "checks.build_command",
			Value:   c.Checks.BuildCommand,
			Message: "must be set when run_build is enabled",
		})
	}
	if c.Checks.RunLint && len(c.Checks.LintCommand) == 0 {
		errors = append(errors, ValidationError{
			Field:   "checks.lint_command",
			Value:   c.Checks.LintCommand,
			Message: "must be set when run_lint is enabled",
		})
	}
	if c.Checks.RunTests && len(c.Checks.TestCommand) == 0 {
		errors = append(errors, ValidationError{
			Field:   "checks.test_command",
			Value:   c.Checks.TestCommand,
			Message: "must be set when run_tests is enabled",
		})
	}

	if c.Store.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "store.dir",
			Value:   c.Store.Dir,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
