package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned for IDs the repository does not hold.
var ErrJobNotFound = errors.New("job not found")

// Repository stores job snapshots. ProcessVideoService saves after every
// state change, so readers see the latest stage and progress.
type Repository interface {
	// Save inserts job or replaces the stored snapshot with the same ID.
	Save(ctx context.Context, job *Job) error
	// FindByID returns the stored snapshot, or ErrJobNotFound.
	FindByID(ctx context.Context, id string) (*Job, error)
	// List returns every stored job, oldest first.
	List(ctx context.Context) ([]*Job, error)
}
