package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func processingJob(attempt int) *domain.Job {
	started := t0
	return &domain.Job{
		ID:        "job-1",
		Kind:      domain.JobKindGeneration,
		Status:    domain.JobStatusProcessing,
		Attempt:   attempt,
		Progress:  0.4,
		StartedAt: &started,
		CreatedAt: t0,
		Version:   2,
	}
}

func TestTransition_Edges(t *testing.T) {
	later := t0.Add(time.Minute)
	completed := t0

	tests := []struct {
		name        string
		job         *domain.Job
		report      Report
		wantErr     error
		wantOutcome Outcome
		check       func(t *testing.T, next *domain.Job)
	}{
		{
			name:        "queued start",
			job:         &domain.Job{ID: "job-1", Status: domain.JobStatusQueued},
			report:      Report{Type: ReportStart, CollaboratorTaskID: "task-1"},
			wantOutcome: OutcomeStarted,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.JobStatusProcessing, next.Status)
				assert.Equal(t, 1, next.Attempt)
				require.NotNil(t, next.StartedAt)
				assert.Equal(t, later, *next.StartedAt)
				assert.Equal(t, "task-1", next.CollaboratorTaskID)
				assert.Nil(t, next.CompletedAt)
			},
		},
		{
			name:    "queued rejects progress",
			job:     &domain.Job{ID: "job-1", Status: domain.JobStatusQueued},
			report:  Report{Type: ReportProgress, Progress: 0.5},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "queued rejects succeed",
			job:     &domain.Job{ID: "job-1", Status: domain.JobStatusQueued},
			report:  Report{Type: ReportSucceed},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:        "progress never decreases",
			job:         processingJob(1),
			report:      Report{Type: ReportProgress, Progress: 0.1},
			wantOutcome: OutcomeProgressed,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, 0.4, next.Progress)
			},
		},
		{
			name:        "progress moves forward",
			job:         processingJob(1),
			report:      Report{Type: ReportProgress, Progress: 0.75},
			wantOutcome: OutcomeProgressed,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, 0.75, next.Progress)
			},
		},
		{
			name:    "progress out of range",
			job:     processingJob(1),
			report:  Report{Type: ReportProgress, Progress: 1.5},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "processing rejects second start",
			job:     processingJob(1),
			report:  Report{Type: ReportStart},
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:        "succeed completes",
			job:         processingJob(2),
			report:      Report{Type: ReportSucceed, Artifact: map[string]any{"video_url": "s3://out.mp4"}},
			wantOutcome: OutcomeCompleted,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.JobStatusCompleted, next.Status)
				assert.Equal(t, 1.0, next.Progress)
				assert.Equal(t, 2, next.Attempt)
				require.NotNil(t, next.CompletedAt)
				assert.Equal(t, "s3://out.mp4", next.Metadata["video_url"])
			},
		},
		{
			name:        "transient failure schedules retry",
			job:         processingJob(2),
			report:      Report{Type: ReportFail, ErrorKind: domain.ErrorKindRateLimited, Message: "429"},
			wantOutcome: OutcomeRetryScheduled,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.JobStatusProcessing, next.Status)
				assert.Equal(t, 3, next.Attempt)
				require.NotNil(t, next.NextAttemptAt)
				assert.Equal(t, later.Add(2*time.Second), *next.NextAttemptAt)
				assert.Empty(t, next.ErrorMessage)
				assert.Nil(t, next.CompletedAt)
			},
		},
		{
			name:        "transient failure on last attempt exhausts",
			job:         processingJob(5),
			report:      Report{Type: ReportFail, ErrorKind: domain.ErrorKindTimeout, Message: "upstream timed out"},
			wantOutcome: OutcomeFailed,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.JobStatusFailed, next.Status)
				assert.Equal(t, 5, next.Attempt)
				assert.Equal(t, "upstream timed out", next.ErrorMessage)
				assert.Equal(t, domain.FailureRetriesExhausted, next.FailureReason)
				require.NotNil(t, next.CompletedAt)
			},
		},
		{
			name:        "fatal failure fails at once",
			job:         processingJob(1),
			report:      Report{Type: ReportFail, ErrorKind: domain.ErrorKindAuthentication, Message: "bad api key"},
			wantOutcome: OutcomeFailed,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.JobStatusFailed, next.Status)
				assert.Equal(t, 1, next.Attempt)
				assert.Equal(t, domain.FailureFatal, next.FailureReason)
				assert.Equal(t, "bad api key", next.ErrorMessage)
			},
		},
		{
			name:        "unknown failure is not retried",
			job:         processingJob(1),
			report:      Report{Type: ReportFail},
			wantOutcome: OutcomeFailed,
			check: func(t *testing.T, next *domain.Job) {
				assert.Equal(t, domain.ErrorKindUnknown, next.ErrorKind)
				assert.Equal(t, "unknown", next.ErrorMessage)
			},
		},
		{
			name:    "completed is terminal",
			job:     &domain.Job{ID: "job-1", Status: domain.JobStatusCompleted, CompletedAt: &completed},
			report:  Report{Type: ReportProgress, Progress: 1},
			wantErr: domain.ErrTerminalState,
		},
		{
			name:    "failed is terminal",
			job:     &domain.Job{ID: "job-1", Status: domain.JobStatusFailed, CompletedAt: &completed},
			report:  Report{Type: ReportStart},
			wantErr: domain.ErrTerminalState,
		},
		{
			name:    "unknown report type",
			job:     processingJob(1),
			report:  Report{Type: "cancel"},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.job.Clone()
			next, outcome, err := Transition(tt.job, tt.report, retry.API, later)

			assert.Equal(t, before, tt.job, "input job must not be modified")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, next)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, later, next.UpdatedAt)
			assert.Equal(t, next.Status.IsTerminal(), next.CompletedAt != nil)
			if tt.check != nil {
				tt.check(t, next)
			}
		})
	}
}

func TestTransition_RetryGate(t *testing.T) {
	job := processingJob(2)
	eligible := t0.Add(time.Second)
	job.NextAttemptAt = &eligible

	t.Run("before eligible instant", func(t *testing.T) {
		_, _, err := Transition(job, Report{Type: ReportStart, CollaboratorTaskID: "task-2"}, retry.API, t0)
		assert.ErrorIs(t, err, domain.ErrRetryNotDue)
	})

	t.Run("resume once eligible", func(t *testing.T) {
		next, outcome, err := Transition(job, Report{Type: ReportStart, CollaboratorTaskID: "task-2"}, retry.API, eligible)
		require.NoError(t, err)
		assert.Equal(t, OutcomeResumed, outcome)
		assert.Nil(t, next.NextAttemptAt)
		assert.Equal(t, 2, next.Attempt)
		assert.Equal(t, "task-2", next.CollaboratorTaskID)
	})

	t.Run("progress once eligible clears gate", func(t *testing.T) {
		next, _, err := Transition(job, Report{Type: ReportProgress, Progress: 0.5}, retry.API, eligible.Add(time.Millisecond))
		require.NoError(t, err)
		assert.Nil(t, next.NextAttemptAt)
	})
}
