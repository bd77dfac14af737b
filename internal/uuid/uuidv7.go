// Package uuid generates identifiers for persisted rows and for records that
// exist only in a client's local mirror until the server assigns a real id.
package uuid

import (
	"strings"

	googleuuid "github.com/google/uuid"
)

// PlaceholderPrefix marks ids minted locally for records the server has not
// confirmed yet.
const PlaceholderPrefix = "tmp-"

// New returns a time-ordered UUIDv7 string suitable as a primary key.
// It falls back to a random UUIDv4 if the v7 generator fails.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// NewPlaceholder returns a locally unique id that can never collide with a
// server-assigned one.
func NewPlaceholder() string {
	return PlaceholderPrefix + googleuuid.NewString()
}

// IsPlaceholder reports whether id was produced by NewPlaceholder.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Parse validates and normalizes a UUID string.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
