package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// Broker is the part of the RabbitMQ client used by the event relay
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// AMQPRelay forwards events to a topic exchange keyed by event type
type AMQPRelay struct {
	broker Broker
}

// NewAMQPRelay creates a new AMQPRelay instance
func NewAMQPRelay(broker Broker) *AMQPRelay {
	return &AMQPRelay{broker: broker}
}

// Publish implements Publisher
func (r *AMQPRelay) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.broker.PublishWithRetry(ctx, string(e.Type), body, contentTypeJSON)
}

// Ingress feeds events published by other processes into a local bus
type Ingress struct {
	broker      Broker
	bus         *Bus
	logger      *slog.Logger
	consumerTag string
}

// NewIngress creates a new Ingress instance
func NewIngress(broker Broker, bus *Bus, consumerTag string, logger *slog.Logger) *Ingress {
	return &Ingress{
		broker:      broker,
		bus:         bus,
		logger:      logger,
		consumerTag: consumerTag,
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes
func (i *Ingress) Run(ctx context.Context) error {
	deliveries, err := i.broker.Consume(i.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start event ingress: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("event delivery channel closed")
			}
			i.handle(ctx, d)
		}
	}
}

func (i *Ingress) handle(ctx context.Context, d amqp.Delivery) {
	var e Event
	if err := json.Unmarshal(d.Body, &e); err != nil {
		i.logger.Error("Failed to decode event, discarding",
			slog.String("routing_key", d.RoutingKey),
			slog.Any("error", err),
		)
		d.Nack(false, false)
		return
	}

	// Locally published events were already delivered
	if e.Origin == i.bus.Origin() {
		d.Ack(false)
		return
	}

	if err := i.bus.Inject(ctx, e); err != nil {
		i.logger.Warn("Failed to deliver remote event, requeuing",
			slog.String("event_id", e.ID),
			slog.Any("error", err),
		)
		d.Nack(false, true)
		return
	}

	d.Ack(false)
}
