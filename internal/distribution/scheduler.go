package distribution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cr "github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/timeslot"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

// MinSpacing separates posts assigned to the same window
const MinSpacing = 15 * time.Minute

// PeakSource answers ranked windows for a region/platform pair
type PeakSource interface {
	Analyze(ctx context.Context, region, platform string) ([]domain.TimeSlot, error)
}

// SchedulerConfig holds scheduler dependencies
type SchedulerConfig struct {
	Store     PostStore
	Peaks     PeakSource
	Publisher events.Publisher
	Clock     clock.Clock
	Logger    *slog.Logger
	Spacing   time.Duration
}

// Scheduler turns ready content into PENDING posts
type Scheduler struct {
	store     PostStore
	peaks     PeakSource
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	spacing   time.Duration
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		store:     cfg.Store,
		peaks:     cfg.Peaks,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		spacing:   cfg.Spacing,
	}
	if s.clock == nil {
		s.clock = clock.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.spacing <= 0 {
		s.spacing = MinSpacing
	}
	return s
}

// ScheduleRequest asks for one post per (platform, region) pair
type ScheduleRequest struct {
	ContentID string
	UserID    string
	Platforms []string
	Regions   []string
}

type target struct {
	platform string
	region   string
}

func (t target) key() string {
	return t.region + "|" + t.platform
}

// targets validates every pair before anything is scheduled and returns them
// platform-major in submission order, duplicates removed
func (r ScheduleRequest) targets() ([]target, error) {
	if strings.TrimSpace(r.ContentID) == "" {
		return nil, domain.Invalidf("content_id is required")
	}
	if len(r.Platforms) == 0 || len(r.Regions) == 0 {
		return nil, domain.Invalidf("at least one platform and one region are required")
	}

	seen := make(map[string]struct{})
	out := make([]target, 0, len(r.Platforms)*len(r.Regions))
	for _, p := range r.Platforms {
		for _, reg := range r.Regions {
			if err := timeslot.ValidatePair(reg, p); err != nil {
				return nil, err
			}
			t := target{platform: timeslot.NormalizePlatform(p), region: timeslot.NormalizeRegion(reg)}
			if _, dup := seen[t.key()]; dup {
				continue
			}
			seen[t.key()] = struct{}{}
			out = append(out, t)
		}
	}
	return out, nil
}

// Schedule assigns every pair a time inside its best window with room left.
// Either all posts are created or none. The pairs stay reserved in the store
// from reading the windows until the posts are written, so schedulers in
// other processes cannot pick the same time.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) ([]*domain.ScheduledPost, error) {
	targets, err := req.targets()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(targets))
	ranked := make([][]domain.TimeSlot, 0, len(targets))
	for _, t := range targets {
		slots, err := s.peaks.Analyze(ctx, t.region, t.platform)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze peak hours for %s/%s: %w", t.region, t.platform, err)
		}
		keys = append(keys, t.key())
		ranked = append(ranked, slots)
	}

	var (
		now   time.Time
		posts []*domain.ScheduledPost
	)
	err = s.store.Reserve(ctx, keys, func(store PostStore) error {
		now = s.clock.Now()
		planned := make(map[string][]time.Time)
		posts = make([]*domain.ScheduledPost, 0, len(targets))

		for i, t := range targets {
			slot, at, err := s.place(ctx, store, t, ranked[i], now, planned[t.key()])
			if err != nil {
				return err
			}
			planned[t.key()] = append(planned[t.key()], at)

			posts = append(posts, &domain.ScheduledPost{
				ID:            uuid.NewString(),
				ContentID:     req.ContentID,
				UserID:        req.UserID,
				Platform:      t.platform,
				Region:        t.region,
				ScheduledTime: at,
				Status:        domain.PostStatusPending,
				SlotStart:     slot.Start,
				SlotEnd:       slot.End,
				SlotScore:     slot.Score,
				CreatedAt:     now,
				UpdatedAt:     now,
				Version:       1,
			})
		}

		if err := store.CreateBatch(ctx, posts); err != nil {
			return fmt.Errorf("failed to store scheduled posts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		s.logger.Info("Post scheduled",
			slog.String("post_id", p.ID),
			slog.String("content_id", p.ContentID),
			slog.String("platform", p.Platform),
			slog.String("region", p.Region),
			slog.Time("scheduled_time", p.ScheduledTime),
			slog.Float64("slot_score", p.SlotScore),
		)
		s.publish(ctx, events.ForPost(events.TypePostScheduled, p, now))
	}

	out := make([]*domain.ScheduledPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Clone())
	}
	return out, nil
}

// place walks slots best-first and returns the first one with room
func (s *Scheduler) place(ctx context.Context, store PostStore, t target, slots []domain.TimeSlot, now time.Time, planned []time.Time) (domain.TimeSlot, time.Time, error) {
	for _, slot := range slots {
		if !slot.End.After(slot.Start) {
			continue
		}

		existing, err := store.ListInWindow(ctx, t.region, t.platform, slot.Start, slot.End)
		if err != nil {
			return domain.TimeSlot{}, time.Time{}, fmt.Errorf("failed to read window assignments: %w", err)
		}

		var (
			latest time.Time
			found  bool
		)
		for _, p := range existing {
			if !found || p.ScheduledTime.After(latest) {
				latest, found = p.ScheduledTime, true
			}
		}
		for _, at := range planned {
			if slot.Contains(at) && (!found || at.After(latest)) {
				latest, found = at, true
			}
		}

		candidate := slot.Start
		if found && latest.Add(s.spacing).After(candidate) {
			candidate = latest.Add(s.spacing)
		}
		if now.After(candidate) {
			candidate = now
		}

		if candidate.After(slot.End) {
			s.logger.Debug("Window full, trying next",
				slog.String("region", t.region),
				slog.String("platform", t.platform),
				slog.Time("slot_start", slot.Start),
				slog.Time("slot_end", slot.End),
			)
			continue
		}
		return slot, candidate.UTC(), nil
	}

	return domain.TimeSlot{}, time.Time{}, cr.Wrapf(domain.ErrNoCapacity, "%s/%s", t.region, t.platform)
}

func (s *Scheduler) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish post event",
			slog.String("type", string(e.Type)),
			slog.String("post_id", e.PostID),
			slog.String("error", err.Error()),
		)
	}
}

// Posts returns the posts of a content item in schedule order
func (s *Scheduler) Posts(ctx context.Context, contentID string) ([]*domain.ScheduledPost, error) {
	return s.store.ListByContent(ctx, contentID)
}
