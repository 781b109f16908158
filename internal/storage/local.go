package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalPublisher implements Publisher by copying videos into a directory
// that the HTTP server exposes under /videos/.
type LocalPublisher struct {
	dir     string
	baseURL string
}

// NewLocalPublisher creates a new LocalPublisher.
// Videos are written to dir and addressed as <baseURL>/videos/<publicID>.mp4.
// The directory is created if it doesn't exist.
func NewLocalPublisher(dir, baseURL string) (*LocalPublisher, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "slideshow-public")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create publish directory: %w", err)
	}

	return &LocalPublisher{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory published videos are written to.
func (p *LocalPublisher) Dir() string {
	return p.dir
}

// Publish implements Publisher.Publish.
func (p *LocalPublisher) Publish(ctx context.Context, localPath, publicID string) (string, error) {
	if err := validatePublicID(publicID); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: context cancelled: %w", ErrPublishFailed, ctx.Err())
	default:
	}

	name := ObjectKey("", publicID)
	if err := copyFileAtomic(localPath, filepath.Join(p.dir, name)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return p.baseURL + "/videos/" + name, nil
}

// copyFileAtomic copies src to a temp file next to dst, then renames it into
// place so readers never see a partial video.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is a scratch path owned by the caller
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".publish-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write published file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close published file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil { // #nosec G302 - published videos are public
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod published file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename published file: %w", err)
	}
	return nil
}

// Compile-time check that LocalPublisher implements Publisher.
var _ Publisher = (*LocalPublisher)(nil)
