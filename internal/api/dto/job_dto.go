package dto

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

type CreateJobRequest struct {
	UserID  string         `json:"user_id" binding:"required"`
	Kind    string         `json:"kind" binding:"required"`
	Payload map[string]any `json:"payload"`
}

type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// ReportRequest is an external driver's observation of a job
type ReportRequest struct {
	Type               string         `json:"type" binding:"required,oneof=start progress succeed fail"`
	CollaboratorTaskID string         `json:"collaborator_task_id"`
	Progress           float64        `json:"progress"`
	Artifact           map[string]any `json:"artifact"`
	ErrorKind          string         `json:"error_kind"`
	Message            string         `json:"message"`
}

type JobDTO struct {
	ID                 string         `json:"job_id"`
	UserID             string         `json:"user_id"`
	Kind               string         `json:"kind"`
	Status             string         `json:"status"`
	Progress           float64        `json:"progress"`
	Attempt            int            `json:"attempt"`
	NextAttemptAt      *time.Time     `json:"next_attempt_at,omitempty"`
	ErrorKind          string         `json:"error_kind,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	FailureReason      string         `json:"failure_reason,omitempty"`
	CollaboratorTaskID string         `json:"collaborator_task_id,omitempty"`
	Payload            map[string]any `json:"payload,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// FromJob maps a job onto its response shape
func FromJob(job *domain.Job) (JobDTO, error) {
	var out JobDTO
	if err := copier.CopyWithOption(&out, job, copier.Option{DeepCopy: true}); err != nil {
		return JobDTO{}, err
	}
	out.Kind = string(job.Kind)
	out.Status = string(job.Status)
	out.ErrorKind = string(job.ErrorKind)
	out.FailureReason = string(job.FailureReason)
	return out, nil
}
