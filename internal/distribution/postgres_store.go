package distribution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	cr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

const postColumns = `
	post_id, content_id, user_id, platform, region, scheduled_time, status, post_url,
	attempts, retry_count, next_attempt_at, claimed_until, last_error, error_kind,
	failure_reason, slot_start, slot_end, slot_score, created_at, updated_at, posted_at, version`

// postRow is the scheduled_posts table representation of a domain.ScheduledPost
type postRow struct {
	ID            string     `db:"post_id"`
	ContentID     string     `db:"content_id"`
	UserID        string     `db:"user_id"`
	Platform      string     `db:"platform"`
	Region        string     `db:"region"`
	ScheduledTime time.Time  `db:"scheduled_time"`
	Status        string     `db:"status"`
	PostURL       string     `db:"post_url"`
	Attempts      int        `db:"attempts"`
	RetryCount    int        `db:"retry_count"`
	NextAttemptAt *time.Time `db:"next_attempt_at"`
	ClaimedUntil  *time.Time `db:"claimed_until"`
	LastError     string     `db:"last_error"`
	ErrorKind     string     `db:"error_kind"`
	FailureReason string     `db:"failure_reason"`
	SlotStart     time.Time  `db:"slot_start"`
	SlotEnd       time.Time  `db:"slot_end"`
	SlotScore     float64    `db:"slot_score"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	PostedAt      *time.Time `db:"posted_at"`
	Version       int64      `db:"version"`
}

func toPostRow(p *domain.ScheduledPost) postRow {
	return postRow{
		ID:            p.ID,
		ContentID:     p.ContentID,
		UserID:        p.UserID,
		Platform:      p.Platform,
		Region:        p.Region,
		ScheduledTime: p.ScheduledTime,
		Status:        string(p.Status),
		PostURL:       p.PostURL,
		Attempts:      p.Attempts,
		RetryCount:    p.RetryCount,
		NextAttemptAt: p.NextAttemptAt,
		ClaimedUntil:  p.ClaimedUntil,
		LastError:     p.LastError,
		ErrorKind:     string(p.ErrorKind),
		FailureReason: string(p.FailureReason),
		SlotStart:     p.SlotStart,
		SlotEnd:       p.SlotEnd,
		SlotScore:     p.SlotScore,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		PostedAt:      p.PostedAt,
		Version:       p.Version,
	}
}

func (r *postRow) toDomain() *domain.ScheduledPost {
	return &domain.ScheduledPost{
		ID:            r.ID,
		ContentID:     r.ContentID,
		UserID:        r.UserID,
		Platform:      r.Platform,
		Region:        r.Region,
		ScheduledTime: r.ScheduledTime.UTC(),
		Status:        domain.PostStatus(r.Status),
		PostURL:       r.PostURL,
		Attempts:      r.Attempts,
		RetryCount:    r.RetryCount,
		NextAttemptAt: utcPtr(r.NextAttemptAt),
		ClaimedUntil:  utcPtr(r.ClaimedUntil),
		LastError:     r.LastError,
		ErrorKind:     domain.ErrorKind(r.ErrorKind),
		FailureReason: domain.FailureReason(r.FailureReason),
		SlotStart:     r.SlotStart.UTC(),
		SlotEnd:       r.SlotEnd.UTC(),
		SlotScore:     r.SlotScore,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		PostedAt:      utcPtr(r.PostedAt),
		Version:       r.Version,
	}
}

func toDomainPosts(rows []postRow) []*domain.ScheduledPost {
	out := make([]*domain.ScheduledPost, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}

// querier is the part of sqlx shared by *sqlx.DB and *sqlx.Tx
type querier interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// PostgresPostStore persists posts in the scheduled_posts table
type PostgresPostStore struct {
	db     *sqlx.DB
	q      querier
	logger *slog.Logger
}

// NewPostgresPostStore creates a new PostgresPostStore instance
func NewPostgresPostStore(db *sqlx.DB, logger *slog.Logger) *PostgresPostStore {
	return &PostgresPostStore{
		db:     db,
		q:      db,
		logger: logger,
	}
}

// Reserve takes a transaction-scoped advisory lock per key, in sorted order,
// and runs fn against a store bound to that transaction
func (s *PostgresPostStore) Reserve(ctx context.Context, keys []string, fn func(PostStore) error) error {
	if s.db == nil {
		return cr.New("reserve called on a transaction-bound store")
	}

	locks := slices.Clone(keys)
	slices.Sort(locks)
	locks = slices.Compact(locks)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range locks {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "scheduled_posts|"+key); err != nil {
			return fmt.Errorf("failed to lock window %s: %w", key, err)
		}
	}

	if err := fn(&PostgresPostStore{q: tx, logger: s.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

func (s *PostgresPostStore) CreateBatch(ctx context.Context, posts []*domain.ScheduledPost) error {
	if len(posts) == 0 {
		return nil
	}

	rows := make([]postRow, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, toPostRow(p))
	}

	query := `
		INSERT INTO scheduled_posts (` + postColumns + `
		) VALUES (
			:post_id, :content_id, :user_id, :platform, :region, :scheduled_time, :status, :post_url,
			:attempts, :retry_count, :next_attempt_at, :claimed_until, :last_error, :error_kind,
			:failure_reason, :slot_start, :slot_end, :slot_score, :created_at, :updated_at, :posted_at, :version
		)
	`
	// A multi-row insert is a single statement, so the batch is atomic
	if _, err := s.q.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("failed to create scheduled posts: %w", err)
	}

	s.logger.Debug("Scheduled posts created", slog.Int("count", len(rows)))
	return nil
}

func (s *PostgresPostStore) Get(ctx context.Context, postID string) (*domain.ScheduledPost, error) {
	var row postRow
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE post_id = $1`

	if err := s.q.GetContext(ctx, &row, query, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cr.Wrapf(domain.ErrPostNotFound, "post %s", postID)
		}
		return nil, fmt.Errorf("failed to get scheduled post: %w", err)
	}
	return row.toDomain(), nil
}

func (s *PostgresPostStore) ListInWindow(ctx context.Context, region, platform string, start, end time.Time) ([]*domain.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE region = $1
		  AND platform = $2
		  AND scheduled_time BETWEEN $3 AND $4
		ORDER BY scheduled_time, post_id
	`

	var rows []postRow
	if err := s.q.SelectContext(ctx, &rows, query, region, platform, start, end); err != nil {
		return nil, fmt.Errorf("failed to list posts in window: %w", err)
	}
	return toDomainPosts(rows), nil
}

func (s *PostgresPostStore) ListByContent(ctx context.Context, contentID string) ([]*domain.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE content_id = $1
		ORDER BY scheduled_time, post_id
	`

	var rows []postRow
	if err := s.q.SelectContext(ctx, &rows, query, contentID); err != nil {
		return nil, fmt.Errorf("failed to list posts by content: %w", err)
	}
	return toDomainPosts(rows), nil
}

// ClaimDue leases due posts; SKIP LOCKED lets several drivers share the table
func (s *PostgresPostStore) ClaimDue(ctx context.Context, now, claimUntil time.Time, limit int) ([]*domain.ScheduledPost, error) {
	query := `
		UPDATE scheduled_posts
		SET claimed_until = $1,
		    version = version + 1
		WHERE post_id IN (
			SELECT post_id
			FROM scheduled_posts
			WHERE status = $2
			  AND scheduled_time <= $3
			  AND (next_attempt_at IS NULL OR next_attempt_at <= $3)
			  AND (claimed_until IS NULL OR claimed_until <= $3)
			ORDER BY scheduled_time, post_id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + postColumns

	var rows []postRow
	if err := s.q.SelectContext(ctx, &rows, query, claimUntil, string(domain.PostStatusPending), now, limit); err != nil {
		return nil, fmt.Errorf("failed to claim due posts: %w", err)
	}

	posts := toDomainPosts(rows)
	sortBySchedule(posts)

	if len(posts) > 0 {
		s.logger.Debug("Claimed due posts", slog.Int("count", len(posts)))
	}
	return posts, nil
}

func (s *PostgresPostStore) CompareAndSwap(ctx context.Context, post *domain.ScheduledPost, expectedVersion int64) error {
	query := `
		UPDATE scheduled_posts
		SET status = :status,
		    post_url = :post_url,
		    attempts = :attempts,
		    retry_count = :retry_count,
		    next_attempt_at = :next_attempt_at,
		    claimed_until = :claimed_until,
		    last_error = :last_error,
		    error_kind = :error_kind,
		    failure_reason = :failure_reason,
		    updated_at = :updated_at,
		    posted_at = :posted_at,
		    version = version + 1
		WHERE post_id = :post_id
		  AND version = :expected_version
		  AND status = 'PENDING'
	`
	args := struct {
		postRow
		ExpectedVersion int64 `db:"expected_version"`
	}{postRow: toPostRow(post), ExpectedVersion: expectedVersion}

	result, err := s.q.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to update scheduled post: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		current, getErr := s.Get(ctx, post.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status.IsTerminal() {
			return cr.Wrapf(domain.ErrTerminalState, "post %s is %s", post.ID, current.Status)
		}
		return cr.Wrapf(domain.ErrVersionConflict, "post %s expected version %d", post.ID, expectedVersion)
	}

	post.Version = expectedVersion + 1
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
