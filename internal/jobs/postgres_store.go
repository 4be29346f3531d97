package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

const jobColumns = `
	job_id, user_id, kind, status, progress, attempt, next_attempt_at,
	error_kind, error_message, failure_reason, collaborator_task_id,
	payload, metadata, created_at, started_at, completed_at, updated_at, version`

// jobRow is the jobs table representation of a domain.Job
type jobRow struct {
	ID                 string     `db:"job_id"`
	UserID             string     `db:"user_id"`
	Kind               string     `db:"kind"`
	Status             string     `db:"status"`
	Progress           float64    `db:"progress"`
	Attempt            int        `db:"attempt"`
	NextAttemptAt      *time.Time `db:"next_attempt_at"`
	ErrorKind          string     `db:"error_kind"`
	ErrorMessage       string     `db:"error_message"`
	FailureReason      string     `db:"failure_reason"`
	CollaboratorTaskID string     `db:"collaborator_task_id"`
	Payload            []byte     `db:"payload"`
	Metadata           []byte     `db:"metadata"`
	CreatedAt          time.Time  `db:"created_at"`
	StartedAt          *time.Time `db:"started_at"`
	CompletedAt        *time.Time `db:"completed_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	Version            int64      `db:"version"`
}

func toRow(job *domain.Job) (*jobRow, error) {
	payload, err := json.Marshal(nonNil(job.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	metadata, err := json.Marshal(nonNil(job.Metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &jobRow{
		ID:                 job.ID,
		UserID:             job.UserID,
		Kind:               string(job.Kind),
		Status:             string(job.Status),
		Progress:           job.Progress,
		Attempt:            job.Attempt,
		NextAttemptAt:      job.NextAttemptAt,
		ErrorKind:          string(job.ErrorKind),
		ErrorMessage:       job.ErrorMessage,
		FailureReason:      string(job.FailureReason),
		CollaboratorTaskID: job.CollaboratorTaskID,
		Payload:            payload,
		Metadata:           metadata,
		CreatedAt:          job.CreatedAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		UpdatedAt:          job.UpdatedAt,
		Version:            job.Version,
	}, nil
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		ID:                 r.ID,
		UserID:             r.UserID,
		Kind:               domain.JobKind(r.Kind),
		Status:             domain.JobStatus(r.Status),
		Progress:           r.Progress,
		Attempt:            r.Attempt,
		NextAttemptAt:      utcPtr(r.NextAttemptAt),
		ErrorKind:          domain.ErrorKind(r.ErrorKind),
		ErrorMessage:       r.ErrorMessage,
		FailureReason:      domain.FailureReason(r.FailureReason),
		CollaboratorTaskID: r.CollaboratorTaskID,
		CreatedAt:          r.CreatedAt.UTC(),
		StartedAt:          utcPtr(r.StartedAt),
		CompletedAt:        utcPtr(r.CompletedAt),
		UpdatedAt:          r.UpdatedAt.UTC(),
		Version:            r.Version,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload of job %s: %w", r.ID, err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata of job %s: %w", r.ID, err)
		}
	}
	return job, nil
}

// PostgresStore persists jobs in the jobs table
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `
		) VALUES (
			:job_id, :user_id, :kind, :status, :progress, :attempt, :next_attempt_at,
			:error_kind, :error_message, :failure_reason, :collaborator_task_id,
			:payload, :metadata, :created_at, :started_at, :completed_at, :updated_at, :version
		)
	`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug("Job created",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
	)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cr.Wrapf(domain.ErrJobNotFound, "job %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toDomain()
}

// CompareAndSwap uses the version column as an optimistic lock
func (s *PostgresStore) CompareAndSwap(ctx context.Context, job *domain.Job, expectedVersion int64) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET status = :status,
		    progress = :progress,
		    attempt = :attempt,
		    next_attempt_at = :next_attempt_at,
		    error_kind = :error_kind,
		    error_message = :error_message,
		    failure_reason = :failure_reason,
		    collaborator_task_id = :collaborator_task_id,
		    metadata = :metadata,
		    started_at = :started_at,
		    completed_at = :completed_at,
		    updated_at = :updated_at,
		    version = version + 1
		WHERE job_id = :job_id
		  AND version = :expected_version
	`
	args := struct {
		jobRow
		ExpectedVersion int64 `db:"expected_version"`
	}{jobRow: *row, ExpectedVersion: expectedVersion}

	result, err := s.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, getErr := s.Get(ctx, job.ID); getErr != nil {
			return getErr
		}
		s.logger.Warn("Job update lost optimistic lock",
			slog.String("job_id", job.ID),
			slog.Int64("expected_version", expectedVersion),
		)
		return cr.Wrapf(domain.ErrVersionConflict, "job %s expected version %d", job.ID, expectedVersion)
	}

	job.Version = expectedVersion + 1
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	// One extra row tells the caller whether another page exists
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, normalizePageSize(filter.PageSize)+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
