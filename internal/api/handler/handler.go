package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/content-orchestrator/internal/distribution"
	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
)

// JobService is the orchestrator surface exposed over HTTP
type JobService interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (*domain.Job, error)
	Advance(ctx context.Context, jobID string, r jobs.Report) (*domain.Job, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, filter jobs.Filter) (*jobs.Page, error)
}

// DistributionService plans posts for finished content
type DistributionService interface {
	Schedule(ctx context.Context, req distribution.ScheduleRequest) ([]*domain.ScheduledPost, error)
	Posts(ctx context.Context, contentID string) ([]*domain.ScheduledPost, error)
}

// PeakHoursService ranks engagement windows
type PeakHoursService interface {
	Analyze(ctx context.Context, region, platform string) ([]domain.TimeSlot, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Jobs         JobService
	Distribution DistributionService
	PeakHours    PeakHoursService
	Bus          *events.Bus
	Health       map[string]HealthChecker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}
