// Package errors provides the sentinel errors and typed errors shared by the
// card selector, the content stores and the HTTP turn endpoint.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check these errors in your code.
var (
	// ErrInvalidConfiguration indicates an empty catalog or a keyword rule
	// pointing outside the catalog.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPayloadNotFound indicates the content store has no document for a
	// catalog entry.
	ErrPayloadNotFound = errors.New("payload not found")

	// ErrPayloadMalformed indicates a stored document did not parse as a
	// structured JSON object.
	ErrPayloadMalformed = errors.New("payload malformed")

	// ErrRateLimited indicates a conversation sent turns faster than allowed.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates the caller sent an unusable activity.
	ErrInvalidInput = errors.New("invalid input")
)

// PayloadError describes a failed load of a single catalog entry.
type PayloadError struct {
	Index int
	Name  string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("load payload %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// NewPayloadError creates a new payload error.
func NewPayloadError(index int, name string, err error) *PayloadError {
	return &PayloadError{
		Index: index,
		Name:  name,
		Err:   err,
	}
}

// ConfigError represents a configuration validation failure.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}
