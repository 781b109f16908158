// Package storage provides per-request scratch workspaces and publishers
// that move finished videos to durable, URL-addressable storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Static errors for publishing.
var (
	// ErrPublishFailed is matched by every error returned from Publisher.Publish.
	ErrPublishFailed = errors.New("publish failed")
	// ErrInvalidPublicID is returned when a public ID is empty or not path-safe.
	ErrInvalidPublicID = fmt.Errorf("%w: invalid public ID", ErrPublishFailed)
)

// VideoContentType is the MIME type of published videos.
const VideoContentType = "video/mp4"

// publicIDRe limits public IDs to characters that are safe in object keys,
// file names and URLs.
var publicIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Publisher defines the interface for publishing a rendered video.
type Publisher interface {
	// Publish uploads the file at localPath as a video resource under
	// publicID and returns a stable, directly resolvable URL for it.
	// publicID must be unique per request; errors match ErrPublishFailed.
	Publish(ctx context.Context, localPath, publicID string) (url string, err error)
}

// ObjectKey returns the key a video is stored under: prefix + publicID + ".mp4".
func ObjectKey(prefix, publicID string) string {
	return prefix + publicID + ".mp4"
}

func validatePublicID(publicID string) error {
	if !publicIDRe.MatchString(publicID) {
		return fmt.Errorf("%w: %q", ErrInvalidPublicID, publicID)
	}
	return nil
}
