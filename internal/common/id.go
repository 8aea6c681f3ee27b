package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new entity id.
func NewID() string {
	return uuid.New().String()
}

// CompactID strips dashes from a UUID-style id. Object-store prefixes and
// workspace directories use the compact form.
func CompactID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}
