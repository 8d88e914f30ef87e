package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Fatal configuration errors
	ErrInvalidSpec    = errors.New("invalid estimation spec")
	ErrConfigMismatch = errors.New("tree configuration mismatch")

	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Data errors
	ErrInsufficientData  = errors.New("insufficient data for analysis")
	ErrDimensionMismatch = errors.New("data dimension mismatch")

	// Serialization errors
	ErrUnsupportedVersion = errors.New("unsupported serialization version")
	ErrCorruptState       = errors.New("corrupt serialized tree state")
)

// NewInvalidSpecError builds an ErrInvalidSpec with the offending field and reason.
func NewInvalidSpecError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidSpec, field, reason)
}

// NewConfigMismatchError builds an ErrConfigMismatch naming the mismatched setting.
func NewConfigMismatchError(setting string, have, want interface{}) error {
	return fmt.Errorf("%w: %s: tree has %v, caller requested %v", ErrConfigMismatch, setting, have, want)
}

// NewNotFoundError builds an ErrNotFound with resource context.
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// IsInvalidSpecError reports whether err is a spec validation failure.
func IsInvalidSpecError(err error) bool {
	return errors.Is(err, ErrInvalidSpec)
}

// IsConfigMismatchError reports whether err is a tree/request configuration conflict.
func IsConfigMismatchError(err error) bool {
	return errors.Is(err, ErrConfigMismatch)
}

// IsNotFoundError reports whether err is a missing-resource error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
