package distribution

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

func TestReadyListener_SchedulesOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(events.BusConfig{})
	store := NewMemoryPostStore()
	scheduler := NewScheduler(SchedulerConfig{
		Store:     store,
		Peaks:     &fakePeaks{slots: []domain.TimeSlot{evening}},
		Publisher: bus,
		Clock:     clock.NewMockClock(evening.Start.Add(-time.Hour)),
	})
	listener := NewReadyListener(bus, scheduler, slog.Default())

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	// Give the listener time to subscribe
	require.Eventually(t, func() bool {
		ready := events.Event{
			Type: events.TypeContentReady,
			Ready: &events.Ready{
				ContentID: "content-7",
				UserID:    "user-1",
				Platforms: []string{"tiktok", "youtube"},
				Regions:   []string{"FR"},
			},
		}
		if err := bus.Publish(ctx, ready); err != nil {
			return false
		}
		posts, err := store.ListByContent(ctx, "content-7")
		return err == nil && len(posts) == 2
	}, time.Second, 10*time.Millisecond)

	// A repeated event must not schedule the content twice
	require.NoError(t, bus.Publish(ctx, events.Event{
		Type:  events.TypeContentReady,
		Ready: &events.Ready{ContentID: "content-7", Platforms: []string{"tiktok"}, Regions: []string{"FR"}},
	}))
	time.Sleep(20 * time.Millisecond)

	posts, err := store.ListByContent(ctx, "content-7")
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, "user-1", posts[0].UserID)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
