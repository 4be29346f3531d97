package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
	"github.com/cuongbtq/content-orchestrator/internal/pipeline"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

var errNoRunner = errors.New("no runner for job kind")

// processJob drives a job until it is terminal
func (w *Worker) processJob(ctx context.Context, jobID string) error {
	job, err := w.jobs.GetStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	runner, err := w.runners.For(job.Kind)
	if err != nil {
		return fmt.Errorf("%w: %v", errNoRunner, err)
	}

	for !job.Status.IsTerminal() {
		job, err = w.runAttempt(ctx, runner, job)
		if err != nil {
			return err
		}
	}

	w.logger.Info("Job finished",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("status", string(job.Status)),
		slog.Int("attempt", job.Attempt),
	)
	return nil
}

// runAttempt moves the job forward by one attempt and returns its latest state
func (w *Worker) runAttempt(ctx context.Context, runner pipeline.Runner, job *domain.Job) (*domain.Job, error) {
	if job.NextAttemptAt != nil {
		if err := sleep(ctx, job.NextAttemptAt.Sub(w.clock.Now())); err != nil {
			return nil, err
		}
	}

	timeout := w.kindTimeout(job.Kind)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	needsStart := job.Status == domain.JobStatusQueued || job.NextAttemptAt != nil
	if !needsStart && job.CollaboratorTaskID == "" {
		// Processing without a task: the previous submit was lost
		return w.report(ctx, job, jobs.Report{
			Type:      jobs.ReportFail,
			ErrorKind: domain.ErrorKindTransientNetwork,
			Message:   "collaborator task was lost before it was recorded",
		})
	}

	var submission pipeline.Submission
	if needsStart {
		sub, submitErr := runner.Submit(attemptCtx, job)
		if submitErr != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		started, err := w.report(ctx, job, jobs.Report{Type: jobs.ReportStart, CollaboratorTaskID: sub.TaskID})
		if err != nil || started.Status != domain.JobStatusProcessing || started.NextAttemptAt != nil {
			return started, err
		}
		job = started

		if submitErr != nil {
			return w.reportFailure(ctx, job, submitErr, attemptCtx, timeout)
		}
		submission = sub
	}

	return w.pollUntilSettled(ctx, attemptCtx, runner, job, submission, timeout)
}

// pollUntilSettled polls the collaborator until the attempt completes or fails
func (w *Worker) pollUntilSettled(ctx, attemptCtx context.Context, runner pipeline.Runner, job *domain.Job, sub pipeline.Submission, timeout time.Duration) (*domain.Job, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		res, err := runner.Poll(attemptCtx, job)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return w.reportFailure(ctx, job, err, attemptCtx, timeout)

		case res.Done:
			artifact := maps.Clone(sub.Artifact)
			if artifact == nil {
				artifact = map[string]any{}
			}
			maps.Copy(artifact, res.Artifact)
			return w.report(ctx, job, jobs.Report{Type: jobs.ReportSucceed, Artifact: artifact})

		case res.Progress > job.Progress:
			next, err := w.report(ctx, job, jobs.Report{Type: jobs.ReportProgress, Progress: min(res.Progress, 1)})
			if err != nil {
				return nil, err
			}
			if next.Status != domain.JobStatusProcessing || next.NextAttemptAt != nil {
				return next, nil
			}
			job = next
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-attemptCtx.Done():
			return w.reportFailure(ctx, job, attemptCtx.Err(), attemptCtx, timeout)
		case <-ticker.C:
		}
	}
}

// reportFailure classifies err and feeds it to the state machine
func (w *Worker) reportFailure(ctx context.Context, job *domain.Job, err error, attemptCtx context.Context, timeout time.Duration) (*domain.Job, error) {
	kind := retry.Classify(err)
	message := err.Error()
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		kind = domain.ErrorKindTimeout
		message = fmt.Sprintf("%s attempt exceeded %s", job.Kind, timeout)
	} else {
		var collabErr *ports.CollaboratorError
		if errors.As(err, &collabErr) {
			message = collabErr.Err.Error()
		}
	}

	return w.report(ctx, job, jobs.Report{Type: jobs.ReportFail, ErrorKind: kind, Message: message})
}

// report advances the job. A report that lost a race against another
// driver is dropped and the current state is returned instead.
func (w *Worker) report(ctx context.Context, job *domain.Job, r jobs.Report) (*domain.Job, error) {
	next, err := w.jobs.Advance(ctx, job.ID, r)
	if err == nil {
		return next, nil
	}

	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrTerminalState) ||
		errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrRetryNotDue) {
		w.logger.Warn("Job report superseded",
			slog.String("job_id", job.ID),
			slog.String("report", string(r.Type)),
			slog.String("error", err.Error()),
		)
		return w.jobs.GetStatus(ctx, job.ID)
	}
	return nil, fmt.Errorf("failed to advance job %s: %w", job.ID, err)
}
