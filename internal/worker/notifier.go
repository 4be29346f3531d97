package worker

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

// runNotificationRelay hands notification.requested events to the notification sink
func (w *Worker) runNotificationRelay(ctx context.Context, sub *events.Subscription) {
	w.logger.Info("Notification relay started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Notification relay stopped")
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			w.deliverNotification(ctx, e)
		}
	}
}

// deliverNotification retries transient sink failures a bounded number of times
func (w *Worker) deliverNotification(ctx context.Context, e events.Event) {
	policy := retry.Policy{Name: "notify", Base: w.notifyBackoff, MaxAttempts: w.notifyAttempts}

	for attempt := 1; ; attempt++ {
		err := w.notifier.Notify(ctx, e.UserID, e.Message)
		if err == nil {
			w.logger.Info("Notification delivered",
				slog.String("event_id", e.ID),
				slog.String("user_id", e.UserID),
				slog.String("job_id", e.JobID),
				slog.String("post_id", e.PostID),
			)
			return
		}

		kind := retry.Classify(err)
		if !policy.ShouldRetry(attempt, kind) || ctx.Err() != nil {
			w.logger.Error("Notification dropped",
				slog.String("event_id", e.ID),
				slog.String("user_id", e.UserID),
				slog.Int("attempt", attempt),
				slog.String("error_kind", string(kind)),
				slog.String("error", err.Error()),
			)
			return
		}

		if sleep(ctx, policy.NextDelay(attempt)) != nil {
			return
		}
	}
}
