// Package peakhours derives ranked posting windows per region and platform.
package peakhours

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/timeslot"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultFallbackTTL  = time.Hour
	DefaultQueryTimeout = 10 * time.Second
)

// Config holds analyzer configuration
type Config struct {
	Source ports.EngagementSource
	Clock  clock.Clock
	Logger *slog.Logger
	// TTL applies to slots derived from engagement data
	TTL time.Duration
	// FallbackTTL applies to default windows served while the source is down
	FallbackTTL  time.Duration
	QueryTimeout time.Duration
}

// Analyzer answers ranked TimeSlots and memoizes them per pair
type Analyzer struct {
	source       ports.EngagementSource
	clock        clock.Clock
	logger       *slog.Logger
	ttl          time.Duration
	fallbackTTL  time.Duration
	queryTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]entry
	group singleflight.Group
}

type entry struct {
	slots     []domain.TimeSlot
	expiresAt time.Time
	fallback  bool
}

// NewAnalyzer creates a new Analyzer instance
func NewAnalyzer(cfg Config) *Analyzer {
	a := &Analyzer{
		source:       cfg.Source,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		ttl:          cfg.TTL,
		fallbackTTL:  cfg.FallbackTTL,
		queryTimeout: cfg.QueryTimeout,
		cache:        make(map[string]entry),
	}
	if a.clock == nil {
		a.clock = clock.NewRealClock()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTTL
	}
	if a.fallbackTTL <= 0 {
		a.fallbackTTL = DefaultFallbackTTL
	}
	if a.queryTimeout <= 0 {
		a.queryTimeout = DefaultQueryTimeout
	}
	return a
}

func cacheKey(region, platform string) string {
	return region + "|" + platform
}

// Analyze returns the pair's windows by descending score.
// Expired entries are served as-is while a single background refresh runs.
// Entries with a window that has already ended are recomputed first.
func (a *Analyzer) Analyze(ctx context.Context, region, platform string) ([]domain.TimeSlot, error) {
	if err := timeslot.ValidatePair(region, platform); err != nil {
		return nil, err
	}
	region, platform = timeslot.NormalizeRegion(region), timeslot.NormalizePlatform(platform)
	key := cacheKey(region, platform)
	now := a.clock.Now()

	a.mu.RLock()
	e, ok := a.cache[key]
	a.mu.RUnlock()

	if !ok {
		return a.Refresh(ctx, region, platform)
	}

	usable := timeslot.Usable(e.slots, now)
	if len(usable) == len(e.slots) {
		if !now.Before(e.expiresAt) {
			a.refreshAsync(region, platform)
		}
		return usable, nil
	}

	// A window has passed since the entry was computed; recomputing rolls it
	// forward instead of serving a shortened ranking
	slots, err := a.Refresh(ctx, region, platform)
	if err != nil && len(usable) > 0 {
		a.logger.Warn("Peak-hours recompute failed, serving remaining windows",
			slog.String("region", region),
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
		return usable, nil
	}
	return slots, err
}

// Refresh recomputes the pair synchronously and replaces the cache entry
func (a *Analyzer) Refresh(ctx context.Context, region, platform string) ([]domain.TimeSlot, error) {
	if err := timeslot.ValidatePair(region, platform); err != nil {
		return nil, err
	}
	region, platform = timeslot.NormalizeRegion(region), timeslot.NormalizePlatform(platform)

	v, err, _ := a.group.Do(cacheKey(region, platform), func() (any, error) {
		return a.compute(ctx, region, platform)
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]domain.TimeSlot)), nil
}

func (a *Analyzer) refreshAsync(region, platform string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.queryTimeout)
		defer cancel()
		ch := a.group.DoChan(cacheKey(region, platform), func() (any, error) {
			return a.compute(ctx, region, platform)
		})
		if res := <-ch; res.Err != nil {
			a.logger.Warn("Background peak-hours refresh failed",
				slog.String("region", region),
				slog.String("platform", platform),
				slog.String("error", res.Err.Error()),
			)
		}
	}()
}

func (a *Analyzer) compute(ctx context.Context, region, platform string) ([]domain.TimeSlot, error) {
	now := a.clock.Now()
	slots, err := a.fromSource(ctx, region, platform, now)
	fallback := false
	if err != nil || len(slots) == 0 {
		attrs := []any{
			slog.String("region", region),
			slog.String("platform", platform),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		a.logger.Warn("Engagement data unavailable, using default windows", attrs...)

		slots, err = timeslot.Fallback(region, platform, now)
		if err != nil {
			return nil, err
		}
		fallback = true
	}

	ttl := a.ttl
	if fallback {
		ttl = a.fallbackTTL
	}

	a.mu.Lock()
	a.cache[cacheKey(region, platform)] = entry{
		slots:     slots,
		expiresAt: now.Add(ttl),
		fallback:  fallback,
	}
	a.mu.Unlock()

	a.logger.Debug("Peak hours computed",
		slog.String("region", region),
		slog.String("platform", platform),
		slog.Int("slots", len(slots)),
		slog.Bool("fallback", fallback),
	)
	return clone(slots), nil
}

func (a *Analyzer) fromSource(ctx context.Context, region, platform string, now time.Time) ([]domain.TimeSlot, error) {
	if a.source == nil {
		return nil, ports.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, a.queryTimeout)
	defer cancel()

	windows, err := a.source.Query(ctx, region, platform)
	if err != nil {
		return nil, err
	}

	slots := make([]domain.TimeSlot, 0, len(windows))
	for _, w := range windows {
		slots = append(slots, domain.TimeSlot{
			Region:   region,
			Platform: platform,
			Start:    w.Start.UTC(),
			End:      w.End.UTC(),
			Score:    w.Score,
		})
	}
	slots = timeslot.Usable(slots, now)
	timeslot.Rank(slots)
	return slots, nil
}

func clone(slots []domain.TimeSlot) []domain.TimeSlot {
	return append([]domain.TimeSlot(nil), slots...)
}
