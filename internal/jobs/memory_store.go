package jobs

import (
	"context"
	"sort"
	"sync"

	cr "github.com/cockroachdb/errors"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

// MemoryStore keeps jobs in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*domain.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return cr.Newf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, cr.Wrapf(domain.ErrJobNotFound, "job %s", jobID)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, job *domain.Job, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return cr.Wrapf(domain.ErrJobNotFound, "job %s", job.ID)
	}
	if current.Version != expectedVersion {
		return cr.Wrapf(domain.ErrVersionConflict, "job %s at version %d, expected %d",
			job.ID, current.Version, expectedVersion)
	}

	job.Version = expectedVersion + 1
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Cursor.after(job) {
			continue
		}
		out = append(out, job.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if limit := normalizePageSize(filter.PageSize) + 1; len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
