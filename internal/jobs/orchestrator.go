package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
	"github.com/cuongbtq/content-orchestrator/internal/timeslot"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

// Config holds orchestrator dependencies
type Config struct {
	Store     Store
	Publisher events.Publisher
	Clock     clock.Clock
	Policy    retry.Policy
	Logger    *slog.Logger
}

// Orchestrator drives jobs through their state machine
type Orchestrator struct {
	store     Store
	publisher events.Publisher
	clock     clock.Clock
	policy    retry.Policy
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRealClock()
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.API
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		locks:     newKeyedMutex(),
	}
}

// SubmitRequest describes a new job
type SubmitRequest struct {
	Kind    domain.JobKind
	UserID  string
	Payload map[string]any
}

// Submit validates and stores a QUEUED job. It never calls collaborators.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if err := validateSubmit(req); err != nil {
		o.logger.Warn("Rejected job submission",
			slog.String("kind", string(req.Kind)),
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	now := o.clock.Now()
	job := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Kind:      req.Kind,
		Status:    domain.JobStatusQueued,
		Payload:   req.Payload,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := o.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	o.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("user_id", job.UserID),
	)

	o.publish(ctx, events.ForJob(events.TypeJobQueued, job, now))
	return job.Clone(), nil
}

func validateSubmit(req SubmitRequest) error {
	if !req.Kind.Valid() {
		return domain.Invalidf("unknown job kind %q", req.Kind)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return domain.Invalidf("user_id is required")
	}

	switch req.Kind {
	case domain.JobKindLocalization:
		platforms := domain.StringList(req.Payload[domain.PayloadPlatforms])
		regions := domain.StringList(req.Payload[domain.PayloadRegions])
		if len(platforms) == 0 && len(regions) == 0 {
			return nil
		}
		if len(platforms) == 0 || len(regions) == 0 {
			return domain.Invalidf("distribution targets need both platforms and regions")
		}
		if id, _ := req.Payload[domain.PayloadContentID].(string); id == "" {
			return domain.Invalidf("content_id is required when distribution targets are given")
		}
		for _, p := range platforms {
			for _, r := range regions {
				if err := timeslot.ValidatePair(r, p); err != nil {
					return err
				}
			}
		}
	case domain.JobKindBlockchainRegistration:
		if hash, _ := req.Payload[domain.PayloadHash].(string); hash == "" {
			return domain.Invalidf("content_hash is required for blockchain registration")
		}
	}
	return nil
}

// Advance applies exactly one transition to the job
func (o *Orchestrator) Advance(ctx context.Context, jobID string, r Report) (*domain.Job, error) {
	unlock := o.locks.Lock(jobID)
	defer unlock()

	current, err := o.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	next, outcome, err := Transition(current, r, o.policy, now)
	if err != nil {
		o.logger.Warn("Rejected job report",
			slog.String("job_id", jobID),
			slog.String("status", string(current.Status)),
			slog.String("report", string(r.Type)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := o.store.CompareAndSwap(ctx, next, current.Version); err != nil {
		return nil, err
	}

	o.logTransition(current, next, outcome)
	o.emit(ctx, next, outcome)
	return next.Clone(), nil
}

// GetStatus returns a snapshot of the job
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	return o.store.Get(ctx, jobID)
}

// Page is one slice of a job listing
type Page struct {
	Jobs       []*domain.Job
	NextCursor string
}

// List returns jobs newest first, paginated by an opaque cursor
func (o *Orchestrator) List(ctx context.Context, filter Filter) (*Page, error) {
	filter.PageSize = normalizePageSize(filter.PageSize)

	jobs, err := o.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &Page{Jobs: jobs}
	if len(jobs) > filter.PageSize {
		page.Jobs = jobs[:filter.PageSize]
		page.NextCursor = EncodeCursor(page.Jobs[len(page.Jobs)-1])
	}
	return page, nil
}

func (o *Orchestrator) logTransition(prev, next *domain.Job, outcome Outcome) {
	attrs := []any{
		slog.String("job_id", next.ID),
		slog.String("kind", string(next.Kind)),
		slog.String("from", string(prev.Status)),
		slog.String("to", string(next.Status)),
		slog.Int("attempt", next.Attempt),
	}

	switch outcome {
	case OutcomeRetryScheduled:
		o.logger.Warn("Job attempt failed, retry scheduled",
			append(attrs,
				slog.String("error_kind", string(next.ErrorKind)),
				slog.Time("next_attempt_at", *next.NextAttemptAt),
			)...,
		)
	case OutcomeFailed:
		o.logger.Error("Job failed",
			append(attrs,
				slog.String("error_kind", string(next.ErrorKind)),
				slog.String("failure_reason", string(next.FailureReason)),
				slog.String("error", next.ErrorMessage),
			)...,
		)
	case OutcomeProgressed:
		o.logger.Debug("Job progressed", append(attrs, slog.Float64("progress", next.Progress))...)
	default:
		o.logger.Info("Job transitioned", attrs...)
	}
}

func (o *Orchestrator) emit(ctx context.Context, job *domain.Job, outcome Outcome) {
	now := job.UpdatedAt

	switch outcome {
	case OutcomeStarted, OutcomeResumed:
		o.publish(ctx, events.ForJob(events.TypeJobStarted, job, now))
	case OutcomeProgressed:
		o.publish(ctx, events.ForJob(events.TypeJobProgress, job, now))
	case OutcomeRetryScheduled:
		o.publish(ctx, events.ForJob(events.TypeJobRetryScheduled, job, now))
	case OutcomeCompleted:
		o.publish(ctx, events.ForJob(events.TypeJobCompleted, job, now))
		if job.Kind == domain.JobKindLocalization {
			contentID, platforms, regions := job.DistributionTargets()
			if contentID != "" && len(platforms) > 0 && len(regions) > 0 {
				e := events.ForJob(events.TypeContentReady, job, now)
				e.ContentID = contentID
				e.Ready = &events.Ready{
					ContentID: contentID,
					UserID:    job.UserID,
					Platforms: platforms,
					Regions:   regions,
				}
				o.publish(ctx, e)
			}
		}
	case OutcomeFailed:
		failed := events.ForJob(events.TypeJobFailed, job, now)
		o.publish(ctx, failed)
		o.publish(ctx, events.Notification(failed, fmt.Sprintf(
			"Your %s job %s failed after %d attempt(s): %s",
			strings.ReplaceAll(string(job.Kind), "_", " "), job.ID, job.Attempt, job.ErrorMessage,
		)))
	}
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn("Failed to publish job event",
			slog.String("type", string(e.Type)),
			slog.String("job_id", e.JobID),
			slog.String("error", err.Error()),
		)
	}
}
