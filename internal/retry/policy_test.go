package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

func TestNextDelay(t *testing.T) {
	t.Run("posting backoff is 60s, 120s, 240s", func(t *testing.T) {
		var got []time.Duration
		for attempt := 1; attempt <= Posting.MaxAttempts; attempt++ {
			got = append(got, Posting.NextDelay(attempt))
		}
		assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}, got)
	})

	t.Run("api backoff is 1s through 16s", func(t *testing.T) {
		var got []time.Duration
		for attempt := 1; attempt <= API.MaxAttempts; attempt++ {
			got = append(got, API.NextDelay(attempt))
		}
		assert.Equal(t, []time.Duration{
			1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		}, got)
	})

	t.Run("attempt below one is treated as the first", func(t *testing.T) {
		assert.Equal(t, time.Second, API.NextDelay(0))
		assert.Equal(t, time.Second, API.NextDelay(-3))
	})

	t.Run("delays never decrease", func(t *testing.T) {
		prev := time.Duration(0)
		for attempt := 1; attempt < 100; attempt++ {
			d := API.NextDelay(attempt)
			assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
			prev = d
		}
	})
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		kind    domain.ErrorKind
		want    bool
	}{
		{name: "transient below cap", policy: API, attempt: 1, kind: domain.ErrorKindTransientNetwork, want: true},
		{name: "rate limit below cap", policy: Posting, attempt: 2, kind: domain.ErrorKindRateLimited, want: true},
		{name: "timeout below cap", policy: API, attempt: 4, kind: domain.ErrorKindTimeout, want: true},
		{name: "transient at cap", policy: API, attempt: 5, kind: domain.ErrorKindTransientNetwork, want: false},
		{name: "posting at cap", policy: Posting, attempt: 3, kind: domain.ErrorKindRateLimited, want: false},
		{name: "authentication never retries", policy: API, attempt: 1, kind: domain.ErrorKindAuthentication, want: false},
		{name: "invalid input never retries", policy: Posting, attempt: 1, kind: domain.ErrorKindInvalidInput, want: false},
		{name: "unknown never retries", policy: API, attempt: 1, kind: domain.ErrorKindUnknown, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ShouldRetry(tt.attempt, tt.kind))
		})
	}
}

func TestDecide(t *testing.T) {
	now := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)

	t.Run("retry carries the next eligible instant", func(t *testing.T) {
		d := Posting.Decide(2, domain.ErrorKindTransientNetwork, now)
		assert.True(t, d.Retry)
		assert.Equal(t, 120*time.Second, d.Delay)
		assert.Equal(t, State{Attempt: 3, NextEligibleAt: now.Add(120 * time.Second)}, d.Next)
	})

	t.Run("exhausted is distinguishable from fatal", func(t *testing.T) {
		exhausted := Posting.Decide(3, domain.ErrorKindTransientNetwork, now)
		assert.False(t, exhausted.Retry)
		assert.Equal(t, domain.FailureRetriesExhausted, exhausted.Reason)

		fatal := Posting.Decide(1, domain.ErrorKindAuthentication, now)
		assert.False(t, fatal.Retry)
		assert.Equal(t, domain.FailureFatal, fatal.Reason)
		assert.Equal(t, 1, fatal.Next.Attempt)
	})
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "collaborator error keeps its kind",
			err:  fmt.Errorf("post: %w", ports.NewCollaboratorError(domain.ErrorKindAuthentication, errors.New("token revoked"))),
			want: domain.ErrorKindAuthentication,
		},
		{name: "deadline is a timeout", err: fmt.Errorf("poll: %w", context.DeadlineExceeded), want: domain.ErrorKindTimeout},
		{name: "net timeout", err: timeoutErr{}, want: domain.ErrorKindTimeout},
		{name: "invalid input", err: domain.Invalidf("bad region"), want: domain.ErrorKindInvalidInput},
		{name: "anything else is unknown", err: errors.New("boom"), want: domain.ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
