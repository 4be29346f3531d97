package dto

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

type ScheduleRequest struct {
	ContentID string   `json:"content_id" binding:"required"`
	UserID    string   `json:"user_id" binding:"required"`
	Platforms []string `json:"platforms" binding:"required,min=1"`
	Regions   []string `json:"regions" binding:"required,min=1"`
}

type PostDTO struct {
	ID            string     `json:"post_id"`
	ContentID     string     `json:"content_id"`
	UserID        string     `json:"user_id"`
	Platform      string     `json:"platform"`
	Region        string     `json:"region"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	PostURL       string     `json:"post_url,omitempty"`
	Attempts      int        `json:"attempts"`
	RetryCount    int        `json:"retry_count"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SlotStart     time.Time  `json:"slot_start"`
	SlotEnd       time.Time  `json:"slot_end"`
	SlotScore     float64    `json:"slot_score"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
}

type PostsResponse struct {
	ContentID string    `json:"content_id"`
	Posts     []PostDTO `json:"posts"`
}

// FromPosts maps scheduled posts onto their response shape
func FromPosts(posts []*domain.ScheduledPost) ([]PostDTO, error) {
	out := make([]PostDTO, len(posts))
	for i, p := range posts {
		if err := copier.Copy(&out[i], p); err != nil {
			return nil, err
		}
		out[i].Status = string(p.Status)
		out[i].ErrorKind = string(p.ErrorKind)
		out[i].FailureReason = string(p.FailureReason)
	}
	return out, nil
}

type SlotDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

type PeakHoursResponse struct {
	Region   string    `json:"region"`
	Platform string    `json:"platform"`
	Slots    []SlotDTO `json:"slots"`
}

// FromSlots maps time slots onto their response shape
func FromSlots(region, platform string, slots []domain.TimeSlot) (PeakHoursResponse, error) {
	out := PeakHoursResponse{Region: region, Platform: platform, Slots: make([]SlotDTO, 0, len(slots))}
	if err := copier.Copy(&out.Slots, &slots); err != nil {
		return PeakHoursResponse{}, err
	}
	return out, nil
}
