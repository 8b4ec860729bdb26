// Package idgen generates local identifiers for queued records.
package idgen

import "github.com/google/uuid"

// StringID generates unique string identifiers.
type StringID interface {
	// Generate returns a new identifier that has never been returned before.
	Generate() string
}

// UUID generates time-ordered RFC 9562 version 7 UUID strings.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUIDv7 string.
func (u *UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
