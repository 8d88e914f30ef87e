package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID        ID
	ComparisonID ID
)

// String conversions for domain IDs
func (id RunID) String() string        { return ID(id).String() }
func (id ComparisonID) String() string { return ID(id).String() }

// ModelTag is an opaque human-readable label for one candidate model.
// It appears only in reporting and in the run ledger; the estimation core
// never interprets it.
type ModelTag string

// String returns the string representation
func (t ModelTag) String() string { return string(t) }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseModelTag parses a string into ModelTag
func ParseModelTag(s string) (ModelTag, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("model tag cannot be empty")
	}
	return ModelTag(s), nil
}
