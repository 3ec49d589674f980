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
	ParagraphID ID
	RunID       ID
	IndexName   ID
)

func (id ParagraphID) String() string { return ID(id).String() }
func (id RunID) String() string       { return ID(id).String() }
func (id IndexName) String() string   { return ID(id).String() }

// NewRunID creates an identifier for a single analysis run
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseParagraphID parses a string into ParagraphID
func ParseParagraphID(s string) (ParagraphID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("paragraph ID cannot be empty")
	}
	return ParagraphID(strings.TrimSpace(s)), nil
}

// ParseIndexName parses a string into IndexName
func ParseIndexName(s string) (IndexName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("index name cannot be empty")
	}
	return IndexName(strings.TrimSpace(s)), nil
}
