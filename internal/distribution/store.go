// Package distribution assigns content to peak windows and executes the resulting posts.
package distribution

import (
	"context"
	"sort"
	"sync"
	"time"

	cr "github.com/cockroachdb/errors"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

// PostStore persists scheduled posts. Implementations must be safe for concurrent use.
type PostStore interface {
	// CreateBatch stores every post or none of them
	CreateBatch(ctx context.Context, posts []*domain.ScheduledPost) error
	Get(ctx context.Context, postID string) (*domain.ScheduledPost, error)
	// ListInWindow returns the pair's posts scheduled within [start, end]
	ListInWindow(ctx context.Context, region, platform string, start, end time.Time) ([]*domain.ScheduledPost, error)
	ListByContent(ctx context.Context, contentID string) ([]*domain.ScheduledPost, error)
	// ClaimDue marks up to limit due posts as claimed until claimUntil and returns them
	ClaimDue(ctx context.Context, now, claimUntil time.Time, limit int) ([]*domain.ScheduledPost, error)
	// CompareAndSwap replaces the post when its version still equals expectedVersion
	CompareAndSwap(ctx context.Context, post *domain.ScheduledPost, expectedVersion int64) error
	// Reserve runs fn while no other caller can reserve any of the keys.
	// Reads and writes made through the store handed to fn commit together.
	Reserve(ctx context.Context, keys []string, fn func(PostStore) error) error
}

// MemoryPostStore keeps posts in process memory
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]*domain.ScheduledPost

	reserveMu sync.Mutex
}

// NewMemoryPostStore creates a new MemoryPostStore instance
func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: make(map[string]*domain.ScheduledPost)}
}

func (s *MemoryPostStore) CreateBatch(_ context.Context, posts []*domain.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range posts {
		if _, exists := s.posts[p.ID]; exists {
			return cr.Newf("scheduled post %s already exists", p.ID)
		}
	}
	for _, p := range posts {
		s.posts[p.ID] = p.Clone()
	}
	return nil
}

// Reserve holds one store-wide lock, so every key is covered
func (s *MemoryPostStore) Reserve(_ context.Context, _ []string, fn func(PostStore) error) error {
	s.reserveMu.Lock()
	defer s.reserveMu.Unlock()
	return fn(s)
}

func (s *MemoryPostStore) Get(_ context.Context, postID string) (*domain.ScheduledPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, cr.Wrapf(domain.ErrPostNotFound, "post %s", postID)
	}
	return p.Clone(), nil
}

func (s *MemoryPostStore) ListInWindow(_ context.Context, region, platform string, start, end time.Time) ([]*domain.ScheduledPost, error) {
	return s.filter(func(p *domain.ScheduledPost) bool {
		return p.Region == region && p.Platform == platform &&
			!p.ScheduledTime.Before(start) && !p.ScheduledTime.After(end)
	}), nil
}

func (s *MemoryPostStore) ListByContent(_ context.Context, contentID string) ([]*domain.ScheduledPost, error) {
	return s.filter(func(p *domain.ScheduledPost) bool {
		return p.ContentID == contentID
	}), nil
}

func (s *MemoryPostStore) ClaimDue(_ context.Context, now, claimUntil time.Time, limit int) ([]*domain.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*domain.ScheduledPost, 0)
	for _, p := range s.posts {
		if p.Due(now) {
			due = append(due, p)
		}
	}
	sortBySchedule(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.ScheduledPost, 0, len(due))
	for _, p := range due {
		until := claimUntil
		p.ClaimedUntil = &until
		p.Version++
		claimed = append(claimed, p.Clone())
	}
	return claimed, nil
}

func (s *MemoryPostStore) CompareAndSwap(_ context.Context, post *domain.ScheduledPost, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[post.ID]
	if !ok {
		return cr.Wrapf(domain.ErrPostNotFound, "post %s", post.ID)
	}
	if current.Status.IsTerminal() {
		return cr.Wrapf(domain.ErrTerminalState, "post %s is %s", post.ID, current.Status)
	}
	if current.Version != expectedVersion {
		return cr.Wrapf(domain.ErrVersionConflict, "post %s at version %d, expected %d",
			post.ID, current.Version, expectedVersion)
	}

	post.Version = expectedVersion + 1
	s.posts[post.ID] = post.Clone()
	return nil
}

func (s *MemoryPostStore) filter(keep func(*domain.ScheduledPost) bool) []*domain.ScheduledPost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ScheduledPost, 0)
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sortBySchedule(out)
	return out
}

func sortBySchedule(posts []*domain.ScheduledPost) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].ScheduledTime.Equal(posts[j].ScheduledTime) {
			return posts[i].ScheduledTime.Before(posts[j].ScheduledTime)
		}
		return posts[i].ID < posts[j].ID
	})
}
