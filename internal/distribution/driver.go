package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 8
	DefaultPostTimeout = 30 * time.Second
	DefaultClaimTTL    = 5 * time.Minute
)

// DriverConfig holds posting driver configuration
type DriverConfig struct {
	Store       PostStore
	Posting     ports.PostingService
	Publisher   events.Publisher
	Clock       clock.Clock
	Logger      *slog.Logger
	Policy      retry.Policy
	BatchSize   int
	Concurrency int
	PostTimeout time.Duration
	// ClaimTTL bounds how long a crashed driver keeps a post hidden from others
	ClaimTTL time.Duration
}

// Driver executes due posts against the posting collaborator
type Driver struct {
	store       PostStore
	posting     ports.PostingService
	publisher   events.Publisher
	clock       clock.Clock
	logger      *slog.Logger
	policy      retry.Policy
	batchSize   int
	concurrency int
	postTimeout time.Duration
	claimTTL    time.Duration
}

// NewDriver creates a new Driver instance
func NewDriver(cfg DriverConfig) *Driver {
	d := &Driver{
		store:       cfg.Store,
		posting:     cfg.Posting,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		policy:      cfg.Policy,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		postTimeout: cfg.PostTimeout,
		claimTTL:    cfg.ClaimTTL,
	}
	if d.clock == nil {
		d.clock = clock.NewRealClock()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.policy.MaxAttempts == 0 {
		d.policy = retry.Posting
	}
	if d.batchSize <= 0 {
		d.batchSize = DefaultBatchSize
	}
	if d.concurrency <= 0 {
		d.concurrency = DefaultConcurrency
	}
	if d.postTimeout <= 0 {
		d.postTimeout = DefaultPostTimeout
	}
	if d.claimTTL <= d.postTimeout {
		d.claimTTL = max(DefaultClaimTTL, 2*d.postTimeout)
	}
	return d
}

// ExecutionSummary counts what one pass did
type ExecutionSummary struct {
	Claimed  int `json:"claimed"`
	Posted   int `json:"posted"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
	Released int `json:"released"`
	Lost     int `json:"lost"`
}

type result int

const (
	resultPosted result = iota
	resultRetried
	resultFailed
	resultReleased
	resultLost
)

// ExecuteScheduledPosts runs one pass over every due PENDING post
func (d *Driver) ExecuteScheduledPosts(ctx context.Context) (ExecutionSummary, error) {
	var summary ExecutionSummary

	now := d.clock.Now()
	claimed, err := d.store.ClaimDue(ctx, now, now.Add(d.claimTTL), d.batchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to claim due posts: %w", err)
	}
	summary.Claimed = len(claimed)
	if len(claimed) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, post := range claimed {
		g.Go(func() error {
			r := d.execute(gctx, post)

			mu.Lock()
			defer mu.Unlock()
			switch r {
			case resultPosted:
				summary.Posted++
			case resultRetried:
				summary.Retried++
			case resultFailed:
				summary.Failed++
			case resultReleased:
				summary.Released++
			case resultLost:
				summary.Lost++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("Posting pass finished",
		slog.Int("claimed", summary.Claimed),
		slog.Int("posted", summary.Posted),
		slog.Int("retried", summary.Retried),
		slog.Int("failed", summary.Failed),
		slog.Int("released", summary.Released),
		slog.Int("lost", summary.Lost),
	)
	return summary, nil
}

func (d *Driver) execute(ctx context.Context, post *domain.ScheduledPost) result {
	postCtx, cancel := context.WithTimeout(ctx, d.postTimeout)
	url, err := d.posting.Post(postCtx, ports.PostRequest{
		PostID:    post.ID,
		ContentID: post.ContentID,
		Platform:  post.Platform,
		Region:    post.Region,
	})
	cancel()

	now := d.clock.Now()
	next := post.Clone()
	next.ClaimedUntil = nil
	next.UpdatedAt = now

	// Shutdown interrupted the call; the attempt does not count
	if err != nil && ctx.Err() != nil {
		if casErr := d.store.CompareAndSwap(context.WithoutCancel(ctx), next, post.Version); casErr != nil {
			d.logger.Warn("Failed to release claimed post",
				slog.String("post_id", post.ID),
				slog.String("error", casErr.Error()),
			)
		}
		return resultReleased
	}

	next.Attempts++
	var (
		r       result
		emitted []events.Event
	)

	if err == nil {
		next.Status = domain.PostStatusPosted
		next.PostURL = url
		next.PostedAt = &now
		next.NextAttemptAt = nil
		next.LastError = ""
		next.ErrorKind = ""
		r = resultPosted
		emitted = append(emitted, events.ForPost(events.TypePostPosted, next, now))
	} else {
		kind := retry.Classify(err)
		if errors.Is(postCtx.Err(), context.DeadlineExceeded) {
			kind = domain.ErrorKindTimeout
		}
		decision := d.policy.Decide(next.Attempts, kind, now)
		next.ErrorKind = kind
		next.LastError = err.Error()

		if decision.Retry {
			next.RetryCount++
			eligible := decision.Next.NextEligibleAt
			next.NextAttemptAt = &eligible
			r = resultRetried
			emitted = append(emitted, events.ForPost(events.TypePostRetryScheduled, next, now))
		} else {
			next.Status = domain.PostStatusFailed
			next.FailureReason = decision.Reason
			next.NextAttemptAt = nil
			r = resultFailed
			failed := events.ForPost(events.TypePostFailed, next, now)
			emitted = append(emitted, failed, events.Notification(failed, fmt.Sprintf(
				"Your post of %s on %s (%s) failed after %d attempt(s): %s",
				next.ContentID, next.Platform, next.Region, next.Attempts, next.LastError,
			)))
		}
	}

	// Persisting must survive a cancelled pass; the platform call already happened
	if err := d.store.CompareAndSwap(context.WithoutCancel(ctx), next, post.Version); err != nil {
		d.logger.Error("Failed to record post outcome",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		return resultLost
	}

	d.logOutcome(next, r)
	for _, e := range emitted {
		d.publish(ctx, e)
	}
	return r
}

func (d *Driver) logOutcome(post *domain.ScheduledPost, r result) {
	attrs := []any{
		slog.String("post_id", post.ID),
		slog.String("content_id", post.ContentID),
		slog.String("platform", post.Platform),
		slog.String("region", post.Region),
		slog.Int("attempts", post.Attempts),
	}

	switch r {
	case resultPosted:
		d.logger.Info("Post published", append(attrs, slog.String("post_url", post.PostURL))...)
	case resultRetried:
		d.logger.Warn("Post attempt failed, retry scheduled",
			append(attrs,
				slog.String("error_kind", string(post.ErrorKind)),
				slog.Int("retry_count", post.RetryCount),
				slog.Time("next_attempt_at", *post.NextAttemptAt),
			)...,
		)
	case resultFailed:
		d.logger.Error("Post failed",
			append(attrs,
				slog.String("error_kind", string(post.ErrorKind)),
				slog.String("failure_reason", string(post.FailureReason)),
				slog.String("error", post.LastError),
			)...,
		)
	}
}

func (d *Driver) publish(ctx context.Context, e events.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		d.logger.Warn("Failed to publish post event",
			slog.String("type", string(e.Type)),
			slog.String("post_id", e.PostID),
			slog.String("error", err.Error()),
		)
	}
}
