package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string // "file" or "invalid"
	Field    string // settings path (e.g. "retry.attempts") or file path
	Message  string
	Action   string
	Cause    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause, e.g. fs.ErrNotExist for a missing file.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewFileError reports a settings file that could not be read or parsed.
func NewFileError(path string, cause error) *ConfigError {
	return &ConfigError{
		Category: "file",
		Field:    path,
		Message:  fmt.Sprintf("could not be loaded: %v", cause),
		Action:   "check the path and YAML syntax",
		Cause:    cause,
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string) *ConfigError {
	return &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
}

// IsFileError reports whether err came from reading or parsing the settings file.
func IsFileError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr) && configErr.Category == "file"
}
