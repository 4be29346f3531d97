package worker

import (
	"context"
	"log/slog"
	"time"
)

// runPostingLoop executes due scheduled posts on a fixed period, independent of requests
func (w *Worker) runPostingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.postingInterval)
	defer ticker.Stop()

	w.logger.Info("Posting loop started",
		slog.Duration("interval", w.postingInterval),
	)

	for {
		w.executePosts(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Posting loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// executePosts runs one pass; the driver logs its summary
func (w *Worker) executePosts(ctx context.Context) {
	if _, err := w.posts.ExecuteScheduledPosts(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Posting pass failed",
			slog.String("error", err.Error()),
		)
	}
}
