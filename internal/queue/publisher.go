package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg BudgetEventMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid budget event message: %w", err)
	}

	publishing, err := newPublishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	routingKey := RoutingKey(msg.Type)
	if err := ch.PublishWithContext(ctx, EventsExchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message with routing key %q: %w", routingKey, err)
	}

	return nil
}

// PublishBudgetEvent publishes a domain event, tagging it with the context correlation id.
func (p *RabbitMQPublisher) PublishBudgetEvent(ctx context.Context, event domain.BudgetEvent) error {
	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	return p.Publish(ctx, MessageFromEvent(event, correlationID))
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func newPublishing(msg BudgetEventMessage) (amqp.Publishing, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal budget event message: %w", err)
	}

	timestamp := msg.OccurredAt.UTC()
	if msg.OccurredAt.IsZero() {
		timestamp = time.Now().UTC()
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     timestamp,
		MessageId:     msg.EventID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.Type.String(),
		Body:          payload,
	}, nil
}
