package domain

import "time"

// PostStatus is the lifecycle state of a scheduled post
type PostStatus string

const (
	PostStatusPending PostStatus = "PENDING"
	PostStatusPosted  PostStatus = "POSTED"
	PostStatusFailed  PostStatus = "FAILED"
)

// IsTerminal reports whether the post can no longer change
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPosted || s == PostStatusFailed
}

// ScheduledPost is one planned or executed distribution action
type ScheduledPost struct {
	ID            string        `json:"post_id"`
	ContentID     string        `json:"content_id"`
	UserID        string        `json:"user_id"`
	Platform      string        `json:"platform"`
	Region        string        `json:"region"`
	ScheduledTime time.Time     `json:"scheduled_time"`
	Status        PostStatus    `json:"status"`
	PostURL       string        `json:"post_url,omitempty"`
	Attempts      int           `json:"attempts"`
	RetryCount    int           `json:"retry_count"`
	NextAttemptAt *time.Time    `json:"next_attempt_at,omitempty"`
	ClaimedUntil  *time.Time    `json:"-"`
	LastError     string        `json:"last_error,omitempty"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	SlotStart     time.Time     `json:"slot_start"`
	SlotEnd       time.Time     `json:"slot_end"`
	SlotScore     float64       `json:"slot_score"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PostedAt      *time.Time    `json:"posted_at,omitempty"`
	Version       int64         `json:"version"`
}

// Clone returns a copy safe to hand out
func (p *ScheduledPost) Clone() *ScheduledPost {
	if p == nil {
		return nil
	}
	c := *p
	c.NextAttemptAt = cloneTime(p.NextAttemptAt)
	c.ClaimedUntil = cloneTime(p.ClaimedUntil)
	c.PostedAt = cloneTime(p.PostedAt)
	return &c
}

// Due reports whether the posting driver should attempt the post at now
func (p *ScheduledPost) Due(now time.Time) bool {
	if p.Status != PostStatusPending || p.ScheduledTime.After(now) {
		return false
	}
	if p.NextAttemptAt != nil && p.NextAttemptAt.After(now) {
		return false
	}
	return p.ClaimedUntil == nil || !p.ClaimedUntil.After(now)
}

// TimeSlot is a scored engagement window for a (region, platform) pair
type TimeSlot struct {
	Region   string    `json:"region"`
	Platform string    `json:"platform"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Score    float64   `json:"score"`
}

// Contains reports whether t lies inside the window, bounds included
func (s TimeSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}
