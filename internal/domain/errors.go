package domain

import (
	cr "github.com/cockroachdb/errors"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = cr.New("job not found")

	// ErrPostNotFound is returned when a scheduled post cannot be found in the store
	ErrPostNotFound = cr.New("scheduled post not found")

	// ErrInvalidInput is returned for requests that can never succeed
	// (unknown job kind, unsupported region/platform, malformed payload)
	ErrInvalidInput = cr.New("invalid input")

	// ErrInvalidTransition is returned when a report does not match an edge of the job state machine
	ErrInvalidTransition = cr.New("invalid state transition")

	// ErrTerminalState is returned when mutating a job or post that already finished
	ErrTerminalState = cr.New("record is in a terminal state")

	// ErrRetryNotDue is returned when a retry is reported before its backoff elapsed
	ErrRetryNotDue = cr.New("retry is not due yet")

	// ErrVersionConflict is returned when a compare-and-swap update lost the race
	ErrVersionConflict = cr.New("version conflict")

	// ErrNoCapacity is returned when no peak window can fit another post
	ErrNoCapacity = cr.New("no peak window has room for another post")
)

// Invalidf returns an ErrInvalidInput carrying a formatted cause.
func Invalidf(format string, args ...any) error {
	return cr.Wrapf(ErrInvalidInput, format, args...)
}

// Transitionf returns an ErrInvalidTransition carrying a formatted cause.
func Transitionf(format string, args ...any) error {
	return cr.Wrapf(ErrInvalidTransition, format, args...)
}

// ErrorKind classifies a collaborator failure for retry decisions.
type ErrorKind string

const (
	ErrorKindTransientNetwork ErrorKind = "transient_network"
	ErrorKindRateLimited      ErrorKind = "rate_limited"
	ErrorKindTimeout          ErrorKind = "timeout"
	ErrorKindAuthentication   ErrorKind = "authentication"
	ErrorKindInvalidInput     ErrorKind = "invalid_input"
	ErrorKindUnknown          ErrorKind = "unknown"
)

// ParseErrorKind maps a wire value to an ErrorKind, falling back to unknown.
func ParseErrorKind(s string) ErrorKind {
	switch k := ErrorKind(s); k {
	case ErrorKindTransientNetwork, ErrorKindRateLimited, ErrorKindTimeout,
		ErrorKindAuthentication, ErrorKindInvalidInput:
		return k
	default:
		return ErrorKindUnknown
	}
}

// FailureReason tells an immediate fatal failure apart from exhausted retries.
type FailureReason string

const (
	FailureFatal            FailureReason = "fatal"
	FailureRetriesExhausted FailureReason = "retries_exhausted"
)
