package domain

import (
	"maps"
	"time"
)

// JobKind is the fixed set of asynchronous work the orchestrator tracks
type JobKind string

const (
	JobKindGeneration             JobKind = "generation"
	JobKindLocalization           JobKind = "localization"
	JobKindBlockchainRegistration JobKind = "blockchain_registration"
)

// Valid reports whether k is one of the known job kinds
func (k JobKind) Valid() bool {
	switch k {
	case JobKindGeneration, JobKindLocalization, JobKindBlockchainRegistration:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along Queued < Processing < {Completed, Failed}
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	}
	return -1
}

// Precedes reports whether s comes strictly before other in the lifecycle
func (s JobStatus) Precedes(other JobStatus) bool {
	return s.rank() < other.rank()
}

// Payload keys understood by the orchestrator
const (
	PayloadContentID = "content_id"
	PayloadPlatforms = "platforms"
	PayloadRegions   = "regions"
	PayloadHash      = "content_hash"
)

// Job is one asynchronous unit of work
type Job struct {
	ID                 string         `json:"job_id"`
	UserID             string         `json:"user_id"`
	Kind               JobKind        `json:"kind"`
	Status             JobStatus      `json:"status"`
	Progress           float64        `json:"progress"`
	Attempt            int            `json:"attempt"`
	NextAttemptAt      *time.Time     `json:"next_attempt_at,omitempty"`
	ErrorKind          ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	FailureReason      FailureReason  `json:"failure_reason,omitempty"`
	CollaboratorTaskID string         `json:"collaborator_task_id,omitempty"`
	Payload            map[string]any `json:"payload,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Version            int64          `json:"version"`
}

// Clone returns a deep enough copy for handing out snapshots
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Payload = maps.Clone(j.Payload)
	c.Metadata = maps.Clone(j.Metadata)
	c.NextAttemptAt = cloneTime(j.NextAttemptAt)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	return &c
}

// DistributionTargets extracts the content id and targets carried by a localization payload
func (j *Job) DistributionTargets() (contentID string, platforms, regions []string) {
	contentID, _ = j.Payload[PayloadContentID].(string)
	return contentID, StringList(j.Payload[PayloadPlatforms]), StringList(j.Payload[PayloadRegions])
}

// StringList converts a decoded JSON value into a string slice
func StringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
