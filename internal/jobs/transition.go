package jobs

import (
	"maps"
	"time"

	cr "github.com/cockroachdb/errors"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

// ReportType names what a collaborator observed about a job
type ReportType string

const (
	ReportStart    ReportType = "start"
	ReportProgress ReportType = "progress"
	ReportSucceed  ReportType = "succeed"
	ReportFail     ReportType = "fail"
)

// Report is one observation fed to Advance
type Report struct {
	Type               ReportType       `json:"type"`
	CollaboratorTaskID string           `json:"collaborator_task_id,omitempty"`
	Progress           float64          `json:"progress,omitempty"`
	Artifact           map[string]any   `json:"artifact,omitempty"`
	ErrorKind          domain.ErrorKind `json:"error_kind,omitempty"`
	Message            string           `json:"message,omitempty"`
}

// Outcome is the edge taken by a transition
type Outcome int

const (
	OutcomeStarted Outcome = iota + 1
	OutcomeResumed
	OutcomeProgressed
	OutcomeRetryScheduled
	OutcomeCompleted
	OutcomeFailed
)

const metadataLastError = "last_error"

// Transition applies r to job at now and returns the next state.
// job is never modified.
func Transition(job *domain.Job, r Report, policy retry.Policy, now time.Time) (*domain.Job, Outcome, error) {
	if job.Status.IsTerminal() {
		return nil, 0, cr.Wrapf(domain.ErrTerminalState, "job %s is %s", job.ID, job.Status)
	}

	next := job.Clone()
	next.UpdatedAt = now

	switch job.Status {
	case domain.JobStatusQueued:
		if r.Type != ReportStart {
			return nil, 0, domain.Transitionf("job %s is QUEUED and only accepts start, got %s", job.ID, r.Type)
		}
		next.Status = domain.JobStatusProcessing
		next.Attempt = 1
		next.StartedAt = &now
		next.CollaboratorTaskID = r.CollaboratorTaskID
		return next, OutcomeStarted, nil

	case domain.JobStatusProcessing:
		retryPending := job.NextAttemptAt != nil
		if retryPending && now.Before(*job.NextAttemptAt) {
			return nil, 0, cr.Wrapf(domain.ErrRetryNotDue, "job %s attempt %d is eligible at %s",
				job.ID, job.Attempt, job.NextAttemptAt.Format(time.RFC3339Nano))
		}
		next.NextAttemptAt = nil

		switch r.Type {
		case ReportStart:
			if !retryPending {
				return nil, 0, domain.Transitionf("job %s attempt %d is already running", job.ID, job.Attempt)
			}
			next.CollaboratorTaskID = r.CollaboratorTaskID
			return next, OutcomeResumed, nil

		case ReportProgress:
			if r.Progress < 0 || r.Progress > 1 {
				return nil, 0, domain.Invalidf("progress %v outside [0, 1]", r.Progress)
			}
			next.Progress = max(job.Progress, r.Progress)
			return next, OutcomeProgressed, nil

		case ReportSucceed:
			next.Status = domain.JobStatusCompleted
			next.Progress = 1
			next.CompletedAt = &now
			next.ErrorKind = ""
			next.ErrorMessage = ""
			if len(r.Artifact) > 0 {
				if next.Metadata == nil {
					next.Metadata = make(map[string]any, len(r.Artifact))
				}
				maps.Copy(next.Metadata, r.Artifact)
			}
			delete(next.Metadata, metadataLastError)
			return next, OutcomeCompleted, nil

		case ReportFail:
			kind := r.ErrorKind
			if kind == "" {
				kind = domain.ErrorKindUnknown
			}
			message := r.Message
			if message == "" {
				message = string(kind)
			}

			decision := policy.Decide(job.Attempt, kind, now)
			next.ErrorKind = kind
			if decision.Retry {
				next.Attempt = decision.Next.Attempt
				eligible := decision.Next.NextEligibleAt
				next.NextAttemptAt = &eligible
				if next.Metadata == nil {
					next.Metadata = make(map[string]any, 1)
				}
				next.Metadata[metadataLastError] = message
				return next, OutcomeRetryScheduled, nil
			}

			next.Status = domain.JobStatusFailed
			next.ErrorMessage = message
			next.FailureReason = decision.Reason
			next.CompletedAt = &now
			return next, OutcomeFailed, nil
		}
		return nil, 0, domain.Invalidf("unknown report type %q", r.Type)
	}

	return nil, 0, domain.Transitionf("job %s has unknown status %q", job.ID, job.Status)
}
