package distribution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

var evening = domain.TimeSlot{
	Start: time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC),
	Score: 0.9,
}

var midday = domain.TimeSlot{
	Start: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
	Score: 0.7,
}

type fakePeaks struct {
	mu    sync.Mutex
	slots []domain.TimeSlot
	calls int
}

func (f *fakePeaks) Analyze(_ context.Context, region, platform string) ([]domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]domain.TimeSlot, 0, len(f.slots))
	for _, s := range f.slots {
		s.Region, s.Platform = region, platform
		out = append(out, s)
	}
	return out, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) count(typ events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func newTestScheduler(now time.Time, slots ...domain.TimeSlot) (*Scheduler, *MemoryPostStore, *fakePeaks, *eventRecorder) {
	store := NewMemoryPostStore()
	peaks := &fakePeaks{slots: slots}
	rec := &eventRecorder{}
	s := NewScheduler(SchedulerConfig{
		Store:     store,
		Peaks:     peaks,
		Publisher: rec,
		Clock:     clock.NewMockClock(now),
	})
	return s, store, peaks, rec
}

func existingPost(id string, at time.Time) *domain.ScheduledPost {
	return &domain.ScheduledPost{
		ID:            id,
		ContentID:     "older-content",
		Platform:      "tiktok",
		Region:        "FR",
		ScheduledTime: at,
		Status:        domain.PostStatusPending,
		SlotStart:     evening.Start,
		SlotEnd:       evening.End,
		Version:       1,
	}
}

func TestSchedule_SpacesAfterLatestAssignment(t *testing.T) {
	ctx := context.Background()
	s, store, _, rec := newTestScheduler(evening.Start.Add(-time.Hour), evening)

	require.NoError(t, store.CreateBatch(ctx, []*domain.ScheduledPost{
		existingPost("p-1800", evening.Start),
		existingPost("p-1810", evening.Start.Add(10*time.Minute)),
	}))

	posts, err := s.Schedule(ctx, ScheduleRequest{
		ContentID: "content-1",
		UserID:    "user-1",
		Platforms: []string{"tiktok"},
		Regions:   []string{"FR"},
	})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, time.Date(2025, 3, 10, 18, 25, 0, 0, time.UTC), posts[0].ScheduledTime)
	assert.Equal(t, domain.PostStatusPending, posts[0].Status)
	assert.Equal(t, evening.Start, posts[0].SlotStart)
	assert.Equal(t, evening.End, posts[0].SlotEnd)
	assert.Equal(t, 1, rec.count(events.TypePostScheduled))

	stored, err := store.Get(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
}

func TestSchedule_PlatformMajorOrderAndSpacing(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestScheduler(evening.Start.Add(-time.Hour), evening)

	posts, err := s.Schedule(ctx, ScheduleRequest{
		ContentID: "content-1",
		Platforms: []string{"TikTok", "youtube", "tiktok"},
		Regions:   []string{"fr", "ES"},
	})
	require.NoError(t, err)

	type placement struct {
		Platform string
		Region   string
		At       string
	}
	got := make([]placement, 0, len(posts))
	for _, p := range posts {
		got = append(got, placement{p.Platform, p.Region, p.ScheduledTime.Format("15:04")})
	}
	want := []placement{
		{"tiktok", "FR", "18:00"},
		{"tiktok", "ES", "18:00"},
		{"youtube", "FR", "18:00"},
		{"youtube", "ES", "18:00"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedule_FillsWindowThenOverflows(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestScheduler(midday.Start.Add(-time.Hour), evening, midday)

	// 18:00..21:00 inclusive holds 13 posts at 15 minute spacing
	const capacity = 13
	var times []time.Time
	for i := range capacity + 2 {
		posts, err := s.Schedule(ctx, ScheduleRequest{
			ContentID: "content-" + string(rune('a'+i)),
			Platforms: []string{"tiktok"},
			Regions:   []string{"FR"},
		})
		require.NoError(t, err)
		times = append(times, posts[0].ScheduledTime)
	}

	for i := 1; i < capacity; i++ {
		assert.True(t, evening.Contains(times[i]))
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), MinSpacing)
	}
	assert.Equal(t, evening.End, times[capacity-1])
	assert.Equal(t, midday.Start, times[capacity])
	assert.Equal(t, midday.Start.Add(MinSpacing), times[capacity+1])

	all, err := store.ListInWindow(ctx, "FR", "tiktok", midday.Start, evening.End)
	require.NoError(t, err)
	assert.Len(t, all, capacity+2)
}

func TestSchedule_NoCapacityCreatesNothing(t *testing.T) {
	ctx := context.Background()
	s, store, _, rec := newTestScheduler(evening.End.Add(-5*time.Minute), evening)

	require.NoError(t, store.CreateBatch(ctx, []*domain.ScheduledPost{
		existingPost("p-late", evening.End.Add(-10*time.Minute)),
	}))

	_, err := s.Schedule(ctx, ScheduleRequest{
		ContentID: "content-1",
		Platforms: []string{"tiktok", "youtube"},
		Regions:   []string{"FR"},
	})
	require.ErrorIs(t, err, domain.ErrNoCapacity)

	posts, err := store.ListByContent(ctx, "content-1")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Zero(t, rec.count(events.TypePostScheduled))
}

func TestSchedule_UsesNowInsideWindow(t *testing.T) {
	now := evening.Start.Add(40*time.Minute + 7*time.Second)
	s, _, _, _ := newTestScheduler(now, evening)

	posts, err := s.Schedule(context.Background(), ScheduleRequest{
		ContentID: "content-1",
		Platforms: []string{"instagram"},
		Regions:   []string{"BR"},
	})
	require.NoError(t, err)
	assert.Equal(t, now, posts[0].ScheduledTime)
}

func TestSchedule_RejectsInvalidPairsBeforeWork(t *testing.T) {
	tests := []struct {
		name string
		req  ScheduleRequest
	}{
		{"missing content", ScheduleRequest{Platforms: []string{"tiktok"}, Regions: []string{"FR"}}},
		{"no platforms", ScheduleRequest{ContentID: "c", Regions: []string{"FR"}}},
		{"unknown platform", ScheduleRequest{ContentID: "c", Platforms: []string{"tiktok", "myspace"}, Regions: []string{"FR"}}},
		{"unavailable pair", ScheduleRequest{ContentID: "c", Platforms: []string{"tiktok", "youtube"}, Regions: []string{"FR", "CN"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, peaks, _ := newTestScheduler(evening.Start, evening)

			_, err := s.Schedule(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, peaks.calls)

			posts, err := store.ListInWindow(context.Background(), "FR", "tiktok", evening.Start, evening.End)
			require.NoError(t, err)
			assert.Empty(t, posts)
		})
	}
}

func TestSchedule_ConcurrentCallsKeepSpacing(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestScheduler(evening.Start.Add(-time.Hour), evening)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Schedule(ctx, ScheduleRequest{
				ContentID: "content-" + string(rune('a'+i)),
				Platforms: []string{"twitter"},
				Regions:   []string{"US"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	posts, err := store.ListInWindow(ctx, "US", "twitter", evening.Start, evening.End)
	require.NoError(t, err)
	require.Len(t, posts, 8)
	for i := 1; i < len(posts); i++ {
		assert.GreaterOrEqual(t, posts[i].ScheduledTime.Sub(posts[i-1].ScheduledTime), MinSpacing)
	}
}

// slowWindowStore stretches the gap between reading a window and writing to it
type slowWindowStore struct {
	*MemoryPostStore
	delay time.Duration
}

func (s *slowWindowStore) ListInWindow(ctx context.Context, region, platform string, start, end time.Time) ([]*domain.ScheduledPost, error) {
	posts, err := s.MemoryPostStore.ListInWindow(ctx, region, platform, start, end)
	time.Sleep(s.delay)
	return posts, err
}

func (s *slowWindowStore) Reserve(ctx context.Context, keys []string, fn func(PostStore) error) error {
	return s.MemoryPostStore.Reserve(ctx, keys, func(PostStore) error { return fn(s) })
}

func TestSchedule_SchedulersSharingStoreKeepSpacing(t *testing.T) {
	ctx := context.Background()
	shared := &slowWindowStore{MemoryPostStore: NewMemoryPostStore(), delay: 20 * time.Millisecond}
	now := evening.Start.Add(-time.Hour)

	schedulers := make([]*Scheduler, 2)
	for i := range schedulers {
		schedulers[i] = NewScheduler(SchedulerConfig{
			Store: shared,
			Peaks: &fakePeaks{slots: []domain.TimeSlot{evening}},
			Clock: clock.NewMockClock(now),
		})
	}

	var wg sync.WaitGroup
	for i, s := range schedulers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Schedule(ctx, ScheduleRequest{
				ContentID: "content-" + string(rune('a'+i)),
				Platforms: []string{"tiktok"},
				Regions:   []string{"FR"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	posts, err := shared.ListInWindow(ctx, "FR", "tiktok", evening.Start, evening.End)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, evening.Start, posts[0].ScheduledTime)
	assert.Equal(t, evening.Start.Add(MinSpacing), posts[1].ScheduledTime)
}

func TestMemoryPostStore_ReserveReleasesOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPostStore()
	boom := errors.New("boom")

	err := store.Reserve(ctx, []string{"FR|tiktok"}, func(PostStore) error { return boom })
	require.ErrorIs(t, err, boom)

	// The lock is released after a failed reservation
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Reserve(ctx, []string{"FR|tiktok"}, func(PostStore) error { return nil })
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reservation still held after fn failed")
	}
}
