// Package jobs owns the job state machine and its persistence.
package jobs

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store persists jobs. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	// CompareAndSwap replaces the stored job when its version still equals
	// expectedVersion and sets job.Version to expectedVersion+1.
	CompareAndSwap(ctx context.Context, job *domain.Job, expectedVersion int64) error
	// List returns up to PageSize+1 jobs ordered by (created_at, job_id) descending
	List(ctx context.Context, filter Filter) ([]*domain.Job, error)
}

// Filter narrows a job listing
type Filter struct {
	UserID   string
	Kind     domain.JobKind
	Status   domain.JobStatus
	PageSize int
	Cursor   *Cursor
}

// Cursor is a keyset position in a job listing
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// after reports whether job sorts strictly after the cursor in descending order
func (c *Cursor) after(job *domain.Job) bool {
	if c == nil {
		return true
	}
	if !job.CreatedAt.Equal(c.CreatedAt) {
		return job.CreatedAt.Before(c.CreatedAt)
	}
	return job.ID < c.JobID
}

// DecodeCursor parses an opaque page token; an empty token means the first page
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.Invalidf("malformed cursor: %v", err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 || parts[1] == "" {
		return nil, domain.Invalidf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, domain.Invalidf("invalid createdAt in cursor: %v", err)
	}

	return &Cursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		JobID:     parts[1],
	}, nil
}

// EncodeCursor builds the page token pointing after job
func EncodeCursor(job *domain.Job) string {
	cs := fmt.Sprintf("%d|%s", job.CreatedAt.UnixNano(), job.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}

func normalizePageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return min(n, MaxPageSize)
}
