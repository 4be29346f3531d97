// Package retry decides whether and when a failed operation may run again.
// It never sleeps: callers schedule the retry themselves.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

// Policy is an exponential backoff schedule with an attempt cap
type Policy struct {
	Name        string
	Base        time.Duration
	MaxAttempts int
}

var (
	// API governs calls between the core and its collaborators
	API = Policy{Name: "api", Base: time.Second, MaxAttempts: 5}

	// Posting governs publication attempts on social platforms
	Posting = Policy{Name: "posting", Base: 60 * time.Second, MaxAttempts: 3}
)

// NextDelay returns Base * 2^(attempt-1) for a 1-indexed attempt
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// 2^62 overflows Duration long before; clamp the exponent
	shift := min(attempt-1, 30)
	return p.Base * time.Duration(int64(1)<<uint(shift))
}

// ShouldRetry reports whether attempt may be followed by another one
func (p Policy) ShouldRetry(attempt int, kind domain.ErrorKind) bool {
	if !Retryable(kind) {
		return false
	}
	return attempt < p.MaxAttempts
}

// Retryable reports whether a failure kind is transient
func Retryable(kind domain.ErrorKind) bool {
	switch kind {
	case domain.ErrorKindTransientNetwork, domain.ErrorKindRateLimited, domain.ErrorKindTimeout:
		return true
	}
	return false
}

// State is the retry bookkeeping of one operation
type State struct {
	Attempt        int
	NextEligibleAt time.Time
}

// Decision is the outcome of evaluating a failure
type Decision struct {
	Retry  bool
	Delay  time.Duration
	Next   State
	Reason domain.FailureReason
}

// Decide evaluates a failure of attempt at now
func (p Policy) Decide(attempt int, kind domain.ErrorKind, now time.Time) Decision {
	if p.ShouldRetry(attempt, kind) {
		delay := p.NextDelay(attempt)
		return Decision{
			Retry: true,
			Delay: delay,
			Next:  State{Attempt: attempt + 1, NextEligibleAt: now.Add(delay)},
		}
	}
	reason := domain.FailureFatal
	if Retryable(kind) {
		reason = domain.FailureRetriesExhausted
	}
	return Decision{Next: State{Attempt: attempt}, Reason: reason}
}

// Classify maps an error returned by a collaborator call to a failure kind
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	var collabErr *ports.CollaboratorError
	if errors.As(err, &collabErr) {
		return collabErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return domain.ErrorKindInvalidInput
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ErrorKindTimeout
		}
		return domain.ErrorKindTransientNetwork
	}
	return domain.ErrorKindUnknown
}
