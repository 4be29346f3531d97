// Package bootstrap builds the clients and services shared by the binaries
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/content-orchestrator/internal/adapters/httpapi"
	"github.com/cuongbtq/content-orchestrator/internal/config"
	"github.com/cuongbtq/content-orchestrator/internal/distribution"
	"github.com/cuongbtq/content-orchestrator/internal/events"
	"github.com/cuongbtq/content-orchestrator/internal/jobs"
	"github.com/cuongbtq/content-orchestrator/internal/peakhours"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
	"github.com/cuongbtq/content-orchestrator/shared/logger"
	"github.com/cuongbtq/content-orchestrator/shared/postgresql"
	"github.com/cuongbtq/content-orchestrator/shared/rabbitmq"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		Service:      service,
	})
}

// InitPostgreSQL connects to PostgreSQL and applies migrations when enabled
func InitPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := client.Migrate(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return client, nil
}

// InitRabbitMQ connects to RabbitMQ and declares queue bound to the configured exchange
func InitRabbitMQ(cfg *config.RabbitMQConfig, queue config.QueueConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          queue.Name,
		QueueDurable:       queue.Durable,
		QueueAutoDelete:    queue.AutoDelete,
		QueueExclusive:     queue.Exclusive,
		BindingKeys:        queue.BindingKeys,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// NewEventBus returns a bus relaying to broker and the ingress feeding it back
func NewEventBus(broker events.Broker, origin string, logger *slog.Logger) (*events.Bus, *events.Ingress) {
	bus := events.NewBus(events.BusConfig{
		Logger: logger,
		Origin: origin,
		Relay:  events.NewAMQPRelay(broker),
	})
	return bus, events.NewIngress(broker, bus, origin, logger)
}

// NewCollaboratorClient returns nil when cfg has no base URL
func NewCollaboratorClient(cfg config.CollaboratorConfig, logger *slog.Logger) *httpapi.Client {
	if !cfg.Enabled() {
		return nil
	}
	return httpapi.NewClient(httpapi.ClientConfig{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
}

// Core groups the services both binaries run over the same stores
type Core struct {
	Jobs      *jobs.Orchestrator
	Analyzer  *peakhours.Analyzer
	Posts     distribution.PostStore
	Scheduler *distribution.Scheduler
}

// NewCore wires the orchestrator, analyzer and scheduler over db
func NewCore(cfg *config.Config, db *sqlx.DB, publisher events.Publisher, logger *slog.Logger) *Core {
	clk := clock.NewRealClock()

	var source ports.EngagementSource
	if client := NewCollaboratorClient(cfg.Collaborators.Engagement, logger); client != nil {
		source = httpapi.NewEngagement(client)
	}

	analyzer := peakhours.NewAnalyzer(peakhours.Config{
		Source:       source,
		Clock:        clk,
		Logger:       logger.With(slog.String("component", "peakhours")),
		TTL:          cfg.PeakHours.TTL,
		FallbackTTL:  cfg.PeakHours.FallbackTTL,
		QueryTimeout: cfg.PeakHours.QueryTimeout,
	})

	posts := distribution.NewPostgresPostStore(db, logger)

	return &Core{
		Jobs: jobs.NewOrchestrator(jobs.Config{
			Store:     jobs.NewPostgresStore(db, logger),
			Publisher: publisher,
			Clock:     clk,
			Logger:    logger.With(slog.String("component", "jobs")),
		}),
		Analyzer: analyzer,
		Posts:    posts,
		Scheduler: distribution.NewScheduler(distribution.SchedulerConfig{
			Store:     posts,
			Peaks:     analyzer,
			Publisher: publisher,
			Clock:     clk,
			Logger:    logger.With(slog.String("component", "scheduler")),
			Spacing:   cfg.Distribution.Spacing,
		}),
	}
}
