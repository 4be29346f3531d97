// Package worker drives queued jobs through their collaborators and runs the
// periodic posting and notification loops.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/content-orchestrator/internal/distribution"
	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
	"github.com/cuongbtq/content-orchestrator/internal/pipeline"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPostingInterval = time.Minute
	defaultKindTimeout     = 10 * time.Minute
	defaultNotifyAttempts  = 3
)

// JobDriver is the slice of the orchestrator the worker needs
type JobDriver interface {
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
	Advance(ctx context.Context, jobID string, r jobs.Report) (*domain.Job, error)
}

// PostExecutor runs one pass over due scheduled posts
type PostExecutor interface {
	ExecuteScheduledPosts(ctx context.Context) (distribution.ExecutionSummary, error)
}

// Consumer delivers job.queued messages
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	WorkerID        string
	Jobs            JobDriver
	Runners         pipeline.Registry
	Consumer        Consumer
	Posts           PostExecutor
	Bus             *events.Bus
	Notifier        ports.NotificationSink
	Clock           clock.Clock
	Concurrency     int
	PollInterval    time.Duration
	PostingInterval time.Duration
	KindTimeouts    map[domain.JobKind]time.Duration
	NotifyAttempts  int
	NotifyBackoff   time.Duration
}

// Worker represents the background job worker
type Worker struct {
	logger          *slog.Logger
	workerID        string
	jobs            JobDriver
	runners         pipeline.Registry
	consumer        Consumer
	posts           PostExecutor
	bus             *events.Bus
	notifier        ports.NotificationSink
	clock           clock.Clock
	concurrency     int
	pollInterval    time.Duration
	postingInterval time.Duration
	kindTimeouts    map[domain.JobKind]time.Duration
	notifyAttempts  int
	notifyBackoff   time.Duration
	jobsChan        chan *jobMessage
	wg              sync.WaitGroup
	stopChan        chan struct{}
	stopOnce        sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:          cfg.Logger,
		workerID:        cfg.WorkerID,
		jobs:            cfg.Jobs,
		runners:         cfg.Runners,
		consumer:        cfg.Consumer,
		posts:           cfg.Posts,
		bus:             cfg.Bus,
		notifier:        cfg.Notifier,
		clock:           cfg.Clock,
		concurrency:     cfg.Concurrency,
		pollInterval:    cfg.PollInterval,
		postingInterval: cfg.PostingInterval,
		kindTimeouts:    cfg.KindTimeouts,
		notifyAttempts:  cfg.NotifyAttempts,
		notifyBackoff:   cfg.NotifyBackoff,
		stopChan:        make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.clock == nil {
		w.clock = clock.NewRealClock()
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.postingInterval <= 0 {
		w.postingInterval = defaultPostingInterval
	}
	if w.notifyAttempts <= 0 {
		w.notifyAttempts = defaultNotifyAttempts
	}
	if w.notifyBackoff <= 0 {
		w.notifyBackoff = time.Second
	}
	w.jobsChan = make(chan *jobMessage, w.concurrency)
	return w
}

// Start runs every configured loop and blocks until ctx is canceled or Stop is called
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("posting_interval", w.postingInterval),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if w.consumer != nil {
		deliveries, err := w.setupConsumer()
		if err != nil {
			return err
		}
		w.spawnWorkerPool(ctx)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.startMessageDispatcher(ctx, deliveries)
		}()
	}

	if w.posts != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runPostingLoop(ctx)
		}()
	}

	if w.bus != nil && w.notifier != nil {
		sub := w.bus.Subscribe(events.TypeNotification)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer sub.Close()
			w.runNotificationRelay(ctx, sub)
		}()
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	w.wg.Wait()
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

func (w *Worker) kindTimeout(kind domain.JobKind) time.Duration {
	if d, ok := w.kindTimeouts[kind]; ok && d > 0 {
		return d
	}
	return defaultKindTimeout
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
