// Package ports defines the request/response contracts of the external
// collaborators the orchestration core depends on.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

// ErrUnavailable is returned by an engagement source that cannot answer right now
var ErrUnavailable = errors.New("engagement data unavailable")

// CollaboratorError is a classified failure reported by an external service
type CollaboratorError struct {
	Kind domain.ErrorKind
	Err  error
}

func (e *CollaboratorError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps err with a failure kind
func NewCollaboratorError(kind domain.ErrorKind, err error) error {
	return &CollaboratorError{Kind: kind, Err: err}
}

// PollStatus is the state of a task running inside a collaborator
type PollStatus string

const (
	PollPending PollStatus = "pending"
	PollDone    PollStatus = "done"
	PollFailed  PollStatus = "failed"
)

// PollResult is one answer to a poll request
type PollResult struct {
	Status    PollStatus
	Progress  float64
	Artifact  map[string]any
	ErrorKind domain.ErrorKind
	Message   string
}

// GenerationService renders videos from a generation payload
type GenerationService interface {
	Submit(ctx context.Context, payload map[string]any) (string, error)
	Poll(ctx context.Context, taskID string) (PollResult, error)
}

// LocalizationService produces a localized video and subtitles.
// A done artifact carries "video_ref", "subtitle_ref" and the measured
// "dub_sync_offset_ms" / "subtitle_sync_offset_ms".
type LocalizationService interface {
	Submit(ctx context.Context, payload map[string]any) (string, error)
	Poll(ctx context.Context, taskID string) (PollResult, error)
}

// Registration is the ledger receipt for a content hash
type Registration struct {
	TxID      string
	Timestamp time.Time
}

// BlockchainLedger records content hashes
type BlockchainLedger interface {
	Register(ctx context.Context, hash string) (Registration, error)
	Verify(ctx context.Context, hash string) (bool, error)
}

// EngagementWindow is one scored window returned by the engagement source
type EngagementWindow struct {
	Start time.Time
	End   time.Time
	Score float64
}

// EngagementSource answers which windows perform best for a region/platform
type EngagementSource interface {
	Query(ctx context.Context, region, platform string) ([]EngagementWindow, error)
}

// PostRequest describes one publication on a platform
type PostRequest struct {
	PostID    string
	ContentID string
	Platform  string
	Region    string
}

// PostingService publishes content on a platform and returns the post URL
type PostingService interface {
	Post(ctx context.Context, req PostRequest) (string, error)
}

// NotificationSink delivers a message to a user, at-least-once
type NotificationSink interface {
	Notify(ctx context.Context, userID, message string) error
}
