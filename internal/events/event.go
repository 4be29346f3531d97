// Package events carries job and distribution state changes between components.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

// Type names an event; it doubles as the RabbitMQ routing key
type Type string

const (
	TypeJobQueued         Type = "job.queued"
	TypeJobStarted        Type = "job.started"
	TypeJobProgress       Type = "job.progress"
	TypeJobRetryScheduled Type = "job.retry_scheduled"
	TypeJobCompleted      Type = "job.completed"
	TypeJobFailed         Type = "job.failed"

	TypeContentReady Type = "content.ready"

	TypePostScheduled      Type = "post.scheduled"
	TypePostPosted         Type = "post.posted"
	TypePostRetryScheduled Type = "post.retry_scheduled"
	TypePostFailed         Type = "post.failed"

	// TypeNotification is emitted exactly once for every job or post that ends FAILED
	TypeNotification Type = "notification.requested"
)

// Ready announces that a content item can be distributed
type Ready struct {
	ContentID string   `json:"content_id"`
	UserID    string   `json:"user_id"`
	Platforms []string `json:"platforms"`
	Regions   []string `json:"regions"`
}

// Event is one state change observed by the core
type Event struct {
	ID         string                `json:"id"`
	Type       Type                  `json:"type"`
	Origin     string                `json:"origin"`
	OccurredAt time.Time             `json:"occurred_at"`
	UserID     string                `json:"user_id,omitempty"`
	JobID      string                `json:"job_id,omitempty"`
	PostID     string                `json:"post_id,omitempty"`
	ContentID  string                `json:"content_id,omitempty"`
	Message    string                `json:"message,omitempty"`
	Job        *domain.Job           `json:"job,omitempty"`
	Post       *domain.ScheduledPost `json:"post,omitempty"`
	Ready      *Ready                `json:"ready,omitempty"`
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// ForJob builds an event carrying a job snapshot
func ForJob(typ Type, job *domain.Job, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at,
		UserID:     job.UserID,
		JobID:      job.ID,
		Job:        job.Clone(),
	}
}

// ForPost builds an event carrying a post snapshot
func ForPost(typ Type, post *domain.ScheduledPost, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at,
		UserID:     post.UserID,
		PostID:     post.ID,
		ContentID:  post.ContentID,
		Post:       post.Clone(),
	}
}

// Notification builds the notification-worthy event paired with a failure
func Notification(source Event, message string) Event {
	n := source
	n.ID = uuid.NewString()
	n.Type = TypeNotification
	n.Message = message
	return n
}
