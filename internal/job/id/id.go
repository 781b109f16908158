// Package id provides unique identifier generation for jobs and published videos.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique token.
// The token doubles as the job ID, the scratch workspace name and the
// public ID of the published video, so it must be safe in paths and URLs.
// Format: 32 lowercase hex characters (a random UUID without dashes).
// Example: 3f2b8c1e9a7d4f6b8e2c1a0d9f8b7c6e
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like a token produced by Generate.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
