package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "run.grace_period_seconds")
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

// deviceNameRegex validates device name characters. Names start with an
// alphanumeric and may contain alphanumerics, dots, colons, hyphens, and
// underscores (emulator addresses like "127.0.0.1:5555" are common names).
var deviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found. Resource existence is checked later, once descriptors are
// loaded.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDevices()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateDevices() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool)
	for i, dev := range c.Devices {
		field := fmt.Sprintf("devices[%d]", i)

		if dev.Name == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   dev.Name,
				Message: "must not be empty",
			})
		} else if !deviceNameRegex.MatchString(dev.Name) {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   dev.Name,
				Message: "must start with an alphanumeric and contain only alphanumerics, dots, colons, hyphens, underscores",
			})
		} else if seen[dev.Name] {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   dev.Name,
				Message: "duplicate device name",
			})
		}
		seen[dev.Name] = true

		if dev.Resource == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".resource",
				Value:   dev.Resource,
				Message: "must name a resource",
			})
		}
	}

	return errors
}

func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if c.Run.GracePeriodSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "run.grace_period_seconds",
			Value:   c.Run.GracePeriodSeconds,
			Message: "must be positive",
		})
	}
	if c.Run.DefaultTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.default_timeout_seconds",
			Value:   c.Run.DefaultTimeoutSeconds,
			Message: "must be non-negative (0 means unlimited)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
