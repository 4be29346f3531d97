package distribution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
)

// ReadyListener schedules content as soon as its localization completes
type ReadyListener struct {
	bus       *events.Bus
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewReadyListener creates a new ReadyListener instance
func NewReadyListener(bus *events.Bus, scheduler *Scheduler, logger *slog.Logger) *ReadyListener {
	return &ReadyListener{
		bus:       bus,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Run handles content.ready events until ctx is cancelled
func (l *ReadyListener) Run(ctx context.Context) error {
	sub := l.bus.Subscribe(events.TypeContentReady)
	defer sub.Close()

	l.logger.Info("Ready listener started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Ready listener stopped")
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			l.handle(ctx, e)
		}
	}
}

func (l *ReadyListener) handle(ctx context.Context, e events.Event) {
	if e.Ready == nil {
		return
	}

	// Relayed events may arrive more than once
	existing, err := l.scheduler.Posts(ctx, e.Ready.ContentID)
	if err != nil {
		l.logger.Error("Failed to check existing posts",
			slog.String("content_id", e.Ready.ContentID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(existing) > 0 {
		l.logger.Debug("Content already scheduled, skipping",
			slog.String("content_id", e.Ready.ContentID),
			slog.Int("posts", len(existing)),
		)
		return
	}

	posts, err := l.scheduler.Schedule(ctx, ScheduleRequest{
		ContentID: e.Ready.ContentID,
		UserID:    e.Ready.UserID,
		Platforms: e.Ready.Platforms,
		Regions:   e.Ready.Regions,
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNoCapacity) {
			level = slog.LevelWarn
		}
		l.logger.Log(ctx, level, "Failed to schedule ready content",
			slog.String("content_id", e.Ready.ContentID),
			slog.String("error", err.Error()),
		)
		return
	}

	l.logger.Info("Ready content scheduled",
		slog.String("content_id", e.Ready.ContentID),
		slog.Int("posts", len(posts)),
	)
}
