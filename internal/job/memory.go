package job

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in process memory. Stored jobs are clones, so
// callers never share state with the store. With a history limit, saving a
// new job drops the oldest finished jobs beyond the limit; jobs still in
// flight are never dropped.
type MemoryRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	maxJobs int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithHistoryLimit keeps at most n jobs once older ones have finished.
// Zero or less keeps every job.
func WithHistoryLimit(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.maxJobs = max(n, 0)
	}
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{jobs: make(map[string]*Job)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a snapshot of job, replacing any earlier one with the same ID.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.jobs[snapshot.ID]
	r.jobs[snapshot.ID] = snapshot
	if !known {
		r.evictLocked()
	}
	return nil
}

// FindByID returns a snapshot of the job, or ErrJobNotFound.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return stored.Clone(), nil
}

// List returns snapshots of every job, oldest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked(), nil
}

// sortedLocked clones every stored job, oldest first. Ties on creation
// time are broken by ID so the order is stable.
func (r *MemoryRepository) sortedLocked() []*Job {
	out := make([]*Job, 0, len(r.jobs))
	for _, stored := range r.jobs {
		out = append(out, stored.Clone())
	}
	slices.SortFunc(out, func(a, b *Job) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (r *MemoryRepository) evictLocked() {
	excess := len(r.jobs) - r.maxJobs
	if r.maxJobs == 0 || excess <= 0 {
		return
	}
	for _, j := range r.sortedLocked() {
		if excess == 0 {
			return
		}
		if j.IsTerminal() {
			delete(r.jobs, j.ID)
			excess--
		}
	}
}
