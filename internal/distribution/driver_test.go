package distribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/ports/mocks"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

type DriverTestSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	posting *mocks.MockPostingService
	store   *MemoryPostStore
	clock   *clock.MockClock
	rec     *eventRecorder
	driver  *Driver
}

func (s *DriverTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.posting = mocks.NewMockPostingService(s.ctrl)
	s.store = NewMemoryPostStore()
	s.clock = clock.NewMockClock(evening.Start)
	s.rec = &eventRecorder{}
	s.driver = NewDriver(DriverConfig{
		Store:       s.store,
		Posting:     s.posting,
		Publisher:   s.rec,
		Clock:       s.clock,
		Policy:      retry.Posting,
		PostTimeout: 50 * time.Millisecond,
	})
}

func TestDriverSuite(t *testing.T) {
	suite.Run(t, new(DriverTestSuite))
}

func (s *DriverTestSuite) seed(id string, at time.Time) {
	p := existingPost(id, at)
	p.UserID = "user-1"
	p.ContentID = "content-1"
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*domain.ScheduledPost{p}))
}

func (s *DriverTestSuite) get(id string) *domain.ScheduledPost {
	p, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	return p
}

func (s *DriverTestSuite) TestSuccessMarksPosted() {
	s.seed("p1", evening.Start)
	s.seed("future", evening.Start.Add(time.Hour))

	s.posting.EXPECT().
		Post(gomock.Any(), ports.PostRequest{PostID: "p1", ContentID: "content-1", Platform: "tiktok", Region: "FR"}).
		Return("https://tiktok.example/p1", nil)

	summary, err := s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)
	s.Equal(ExecutionSummary{Claimed: 1, Posted: 1}, summary)

	p := s.get("p1")
	s.Equal(domain.PostStatusPosted, p.Status)
	s.Equal("https://tiktok.example/p1", p.PostURL)
	s.Equal(1, p.Attempts)
	s.Nil(p.ClaimedUntil)
	s.Require().NotNil(p.PostedAt)
	s.Equal(1, s.rec.count(events.TypePostPosted))

	s.Equal(domain.PostStatusPending, s.get("future").Status)
}

// Three retryable failures end in FAILED and one notification
func (s *DriverTestSuite) TestRetryableFailuresExhaust() {
	s.seed("p1", evening.Start)

	s.posting.EXPECT().Post(gomock.Any(), gomock.Any()).
		Return("", ports.NewCollaboratorError(domain.ErrorKindRateLimited, errors.New("429 too many requests"))).
		Times(3)

	wantDelays := []time.Duration{60 * time.Second, 120 * time.Second}
	for i, delay := range wantDelays {
		summary, err := s.driver.ExecuteScheduledPosts(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, summary.Retried)

		p := s.get("p1")
		s.Equal(domain.PostStatusPending, p.Status)
		s.Equal(i+1, p.RetryCount)
		s.Require().NotNil(p.NextAttemptAt)
		s.Equal(s.clock.Now().Add(delay), *p.NextAttemptAt)

		// Not eligible until the backoff elapses
		summary, err = s.driver.ExecuteScheduledPosts(s.ctx)
		s.Require().NoError(err)
		s.Zero(summary.Claimed)

		s.clock.Add(delay)
	}

	summary, err := s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Failed)

	p := s.get("p1")
	s.Equal(domain.PostStatusFailed, p.Status)
	s.Equal(3, p.Attempts)
	s.Equal(domain.FailureRetriesExhausted, p.FailureReason)
	s.Contains(p.LastError, "429")
	s.Equal(1, s.rec.count(events.TypePostFailed))
	s.Equal(1, s.rec.count(events.TypeNotification))

	s.clock.Add(time.Hour)
	summary, err = s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)
	s.Zero(summary.Claimed)
	s.Equal(1, s.rec.count(events.TypeNotification))
}

func (s *DriverTestSuite) TestAuthenticationFailsWithoutRetry() {
	s.seed("p1", evening.Start)

	s.posting.EXPECT().Post(gomock.Any(), gomock.Any()).
		Return("", ports.NewCollaboratorError(domain.ErrorKindAuthentication, errors.New("token revoked")))

	summary, err := s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Failed)

	p := s.get("p1")
	s.Equal(domain.PostStatusFailed, p.Status)
	s.Equal(0, p.RetryCount)
	s.Equal(domain.ErrorKindAuthentication, p.ErrorKind)
	s.Equal(domain.FailureFatal, p.FailureReason)
	s.Equal(1, s.rec.count(events.TypeNotification))

	n := s.rec.events[len(s.rec.events)-1]
	s.Equal(events.TypeNotification, n.Type)
	s.Equal("user-1", n.UserID)
	s.Contains(n.Message, "token revoked")
}

func (s *DriverTestSuite) TestTimeoutIsRetried() {
	s.seed("p1", evening.Start)

	s.posting.EXPECT().Post(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ ports.PostRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	summary, err := s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Retried)

	p := s.get("p1")
	s.Equal(domain.ErrorKindTimeout, p.ErrorKind)
	s.Equal(1, p.RetryCount)
}

func (s *DriverTestSuite) TestUnknownErrorIsNotRetried() {
	s.seed("p1", evening.Start)

	s.posting.EXPECT().Post(gomock.Any(), gomock.Any()).Return("", errors.New("unexpected payload"))

	_, err := s.driver.ExecuteScheduledPosts(s.ctx)
	s.Require().NoError(err)

	p := s.get("p1")
	s.Equal(domain.PostStatusFailed, p.Status)
	s.Equal(domain.ErrorKindUnknown, p.ErrorKind)
}

func TestDriver_ClaimedPostsAreSkippedByOthers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPostStore()
	require.NoError(t, store.CreateBatch(ctx, []*domain.ScheduledPost{existingPost("p1", evening.Start)}))

	now := evening.Start
	first, err := store.ClaimDue(ctx, now, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := store.ClaimDue(ctx, now, now.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, second)

	// An expired claim is visible again
	third, err := store.ClaimDue(ctx, now.Add(2*time.Minute), now.Add(3*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, third, 1)

	stale := first[0]
	stale.Status = domain.PostStatusPosted
	assert.ErrorIs(t, store.CompareAndSwap(ctx, stale, first[0].Version), domain.ErrVersionConflict)
}
