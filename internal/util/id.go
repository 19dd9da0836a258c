package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32-character hex identifier, prefixed as
// "prefix_<hex>" when prefix is set.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
