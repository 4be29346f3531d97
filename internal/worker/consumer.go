package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/content-orchestrator/internal/events"
)

// jobMessage is one job.queued delivery handed to the pool
type jobMessage struct {
	JobID    string
	Delivery amqp.Delivery
}

// setupConsumer starts consuming the job queue
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("worker_id", w.workerID),
	)
	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches jobs to worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			jobID, err := parseJobID(delivery.Body)
			if err != nil {
				w.logger.Error("Discarding malformed job message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages go to the dead-letter exchange, if any
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &jobMessage{JobID: jobID, Delivery: delivery}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", jobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}

// parseJobID extracts the job id of a job.queued event
func parseJobID(body []byte) (string, error) {
	var e events.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return "", fmt.Errorf("failed to parse message JSON: %w", err)
	}
	if e.Type != "" && e.Type != events.TypeJobQueued {
		return "", fmt.Errorf("unexpected event type %q", e.Type)
	}
	if _, err := uuid.Parse(e.JobID); err != nil {
		return "", fmt.Errorf("invalid job_id %q: %w", e.JobID, err)
	}
	return e.JobID, nil
}
