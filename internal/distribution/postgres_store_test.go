//go:build integration

package distribution

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
	"github.com/cuongbtq/content-orchestrator/shared/postgresql/pgtest"
)

func TestPostgresPostStore_ScheduleAfterExisting(t *testing.T) {
	ctx := context.Background()
	client := pgtest.NewClient(t)
	store := NewPostgresPostStore(client.GetDB(), slog.Default())

	require.NoError(t, store.CreateBatch(ctx, []*domain.ScheduledPost{
		existingPost("p-1800", evening.Start),
		existingPost("p-1810", evening.Start.Add(10*time.Minute)),
	}))

	s := NewScheduler(SchedulerConfig{
		Store: store,
		Peaks: &fakePeaks{slots: []domain.TimeSlot{evening}},
		Clock: clock.NewMockClock(evening.Start.Add(-time.Hour)),
	})

	posts, err := s.Schedule(ctx, ScheduleRequest{
		ContentID: "content-1",
		UserID:    "user-1",
		Platforms: []string{"tiktok"},
		Regions:   []string{"FR"},
	})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].ScheduledTime.Equal(time.Date(2025, 3, 10, 18, 25, 0, 0, time.UTC)))

	byContent, err := store.ListByContent(ctx, "content-1")
	require.NoError(t, err)
	require.Len(t, byContent, 1)
	assert.Equal(t, posts[0].ID, byContent[0].ID)
	assert.Equal(t, domain.PostStatusPending, byContent[0].Status)

	window, err := store.ListInWindow(ctx, "FR", "tiktok", evening.Start, evening.End)
	require.NoError(t, err)
	assert.Len(t, window, 3)
}

func TestPostgresPostStore_ClaimAndSwap(t *testing.T) {
	ctx := context.Background()
	client := pgtest.NewClient(t)
	store := NewPostgresPostStore(client.GetDB(), slog.Default())

	now := evening.Start.Add(30 * time.Minute)
	later := now.Add(time.Minute)
	retryAt := now.Add(time.Hour)

	notYet := existingPost("p-later", evening.Start.Add(time.Hour))
	backingOff := existingPost("p-backoff", evening.Start)
	backingOff.NextAttemptAt = &retryAt
	require.NoError(t, store.CreateBatch(ctx, []*domain.ScheduledPost{
		existingPost("p-due", evening.Start),
		notYet,
		backingOff,
	}))

	claimed, err := store.ClaimDue(ctx, now, later, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "p-due", claimed[0].ID)
	assert.Equal(t, int64(2), claimed[0].Version)

	again, err := store.ClaimDue(ctx, now, later, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "a live claim hides the post")

	post := claimed[0].Clone()
	post.Status = domain.PostStatusPosted
	post.PostURL = "https://tiktok.example/p/1"
	post.Attempts = 1
	post.PostedAt = &now
	post.ClaimedUntil = nil
	require.NoError(t, store.CompareAndSwap(ctx, post, claimed[0].Version))
	assert.Equal(t, int64(3), post.Version)

	stored, err := store.Get(ctx, "p-due")
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusPosted, stored.Status)
	assert.Equal(t, "https://tiktok.example/p/1", stored.PostURL)
	require.NotNil(t, stored.PostedAt)

	err = store.CompareAndSwap(ctx, claimed[0], claimed[0].Version)
	assert.ErrorIs(t, err, domain.ErrTerminalState)

	pending, err := store.Get(ctx, "p-later")
	require.NoError(t, err)
	err = store.CompareAndSwap(ctx, pending, pending.Version+5)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestPostgresPostStore_ConcurrentClaimsAreDisjoint(t *testing.T) {
	ctx := context.Background()
	client := pgtest.NewClient(t)
	store := NewPostgresPostStore(client.GetDB(), slog.Default())

	var posts []*domain.ScheduledPost
	for i := 0; i < 20; i++ {
		p := existingPost("p-"+string(rune('a'+i)), evening.Start.Add(time.Duration(i)*time.Minute))
		posts = append(posts, p)
	}
	require.NoError(t, store.CreateBatch(ctx, posts))

	now := evening.End
	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimDue(ctx, now, now.Add(time.Minute), 5)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, p := range claimed {
				seen[p.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, "post %s claimed more than once", id)
	}
}

func TestPostgresPostStore_SchedulersInSeparateProcessesKeepSpacing(t *testing.T) {
	ctx := context.Background()
	client := pgtest.NewClient(t)
	now := evening.Start.Add(-time.Hour)

	// Each scheduler gets its own store, as the api and worker binaries do
	schedulers := make([]*Scheduler, 4)
	for i := range schedulers {
		schedulers[i] = NewScheduler(SchedulerConfig{
			Store: NewPostgresPostStore(client.GetDB(), slog.Default()),
			Peaks: &fakePeaks{slots: []domain.TimeSlot{evening}},
			Clock: clock.NewMockClock(now),
		})
	}

	var wg sync.WaitGroup
	for i, s := range schedulers {
		for j := range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Schedule(ctx, ScheduleRequest{
					ContentID: "content-" + string(rune('a'+i)) + string(rune('0'+j)),
					Platforms: []string{"tiktok"},
					Regions:   []string{"FR"},
				})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	posts, err := NewPostgresPostStore(client.GetDB(), slog.Default()).
		ListInWindow(ctx, "FR", "tiktok", evening.Start, evening.End)
	require.NoError(t, err)
	require.Len(t, posts, 12)
	assert.True(t, posts[0].ScheduledTime.Equal(evening.Start))
	for i := 1; i < len(posts); i++ {
		assert.GreaterOrEqual(t, posts[i].ScheduledTime.Sub(posts[i-1].ScheduledTime), MinSpacing)
	}
}

func TestPostgresPostStore_ReserveRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	client := pgtest.NewClient(t)
	store := NewPostgresPostStore(client.GetDB(), slog.Default())

	err := store.Reserve(ctx, []string{"FR|tiktok"}, func(tx PostStore) error {
		if err := tx.CreateBatch(ctx, []*domain.ScheduledPost{existingPost("p-rolled-back", evening.Start)}); err != nil {
			return err
		}
		return domain.ErrNoCapacity
	})
	require.ErrorIs(t, err, domain.ErrNoCapacity)

	_, err = store.Get(ctx, "p-rolled-back")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}
