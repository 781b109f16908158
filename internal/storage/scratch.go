package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scratch hands out per-request workspaces under a shared root directory.
type Scratch struct {
	root string
}

// NewScratch creates a new Scratch rooted at root.
// If root is empty, os.TempDir()/slideshow is used.
// The directory is created if it doesn't exist.
func NewScratch(root string) (*Scratch, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "slideshow")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	return &Scratch{root: root}, nil
}

// Root returns the scratch root directory.
func (s *Scratch) Root() string {
	return s.root
}

// Workspace creates the directory <root>/<token> and returns it.
// Tokens are unique per request, so concurrent requests never share files.
func (s *Scratch) Workspace(token string) (*Workspace, error) {
	if err := validatePublicID(token); err != nil {
		return nil, fmt.Errorf("workspace token: %q is not path-safe", token)
	}

	dir := filepath.Join(s.root, token)
	if err := os.Mkdir(dir, 0750); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// Workspace is the scratch directory owned by one request.
type Workspace struct {
	dir string
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}
	return nil
}
