package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

// Artifact keys reported by the localization service
const (
	ArtifactVideoRef           = "video_ref"
	ArtifactSubtitleRef        = "subtitle_ref"
	ArtifactDubSyncOffset      = "dub_sync_offset_ms"
	ArtifactSubtitleSyncOffset = "subtitle_sync_offset_ms"
)

const (
	// DefaultDubSyncTolerance bounds audio/video drift of a dubbed track
	DefaultDubSyncTolerance = 100 * time.Millisecond
	// DefaultSubtitleSyncTolerance bounds drift of subtitle-only output
	DefaultSubtitleSyncTolerance = 200 * time.Millisecond
)

// SyncTolerance holds the two independent drift thresholds
type SyncTolerance struct {
	Dub      time.Duration
	Subtitle time.Duration
}

// LocalizationRunner drives localization tasks and rejects output drifting out of sync
type LocalizationRunner struct {
	svc       ports.LocalizationService
	tolerance SyncTolerance
}

// NewLocalizationRunner creates a new LocalizationRunner instance
func NewLocalizationRunner(svc ports.LocalizationService, tol SyncTolerance) *LocalizationRunner {
	if tol.Dub <= 0 {
		tol.Dub = DefaultDubSyncTolerance
	}
	if tol.Subtitle <= 0 {
		tol.Subtitle = DefaultSubtitleSyncTolerance
	}
	return &LocalizationRunner{svc: svc, tolerance: tol}
}

func (l *LocalizationRunner) Submit(ctx context.Context, job *domain.Job) (Submission, error) {
	taskID, err := l.svc.Submit(ctx, job.Payload)
	if err != nil {
		return Submission{}, err
	}
	return Submission{TaskID: taskID}, nil
}

// Poll fails the attempt as transient when a finished artifact is out of sync
func (l *LocalizationRunner) Poll(ctx context.Context, job *domain.Job) (Result, error) {
	res, err := l.svc.Poll(ctx, job.CollaboratorTaskID)
	if err != nil {
		return Result{}, err
	}
	out, err := pollResult(res)
	if err != nil || !out.Done {
		return out, err
	}
	if err := l.CheckSync(out.Artifact); err != nil {
		return Result{}, err
	}
	return out, nil
}

// CheckSync verifies the measured offsets of a finished artifact.
// A missing offset means that track was not produced.
func (l *LocalizationRunner) CheckSync(artifact map[string]any) error {
	checks := []struct {
		key   string
		label string
		limit time.Duration
	}{
		{ArtifactDubSyncOffset, "dub", l.tolerance.Dub},
		{ArtifactSubtitleSyncOffset, "subtitle", l.tolerance.Subtitle},
	}
	for _, c := range checks {
		ms, ok := offsetMillis(artifact[c.key])
		if !ok {
			continue
		}
		drift := time.Duration(math.Abs(ms) * float64(time.Millisecond))
		if drift > c.limit {
			return ports.NewCollaboratorError(domain.ErrorKindTransientNetwork,
				fmt.Errorf("%s sync drift %s exceeds %s", c.label, drift, c.limit))
		}
	}
	return nil
}

func offsetMillis(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
