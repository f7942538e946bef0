package queue

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// Publisher publishes budget event messages to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, msg BudgetEventMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BudgetEventMessage) error

// Consumer consumes budget event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// EventsExchange is the topic exchange budget events are published to.
	EventsExchange = "credit.budget"
	// BudgetEventsQueue receives every budget event type.
	BudgetEventsQueue = "budget.events"

	routingKeyPrefix = "budget."
)

var supportedEventTypes = []domain.BudgetEventType{
	domain.BudgetEventAllocated,
	domain.BudgetEventCancelled,
	domain.BudgetEventExpired,
}

// RoutingKey returns the routing key for an event type, e.g. budget.allocated.
func RoutingKey(eventType domain.BudgetEventType) string {
	return routingKeyPrefix + eventType.String()
}

// RoutingKeys returns the routing keys of all supported event types.
func RoutingKeys() []string {
	keys := make([]string, 0, len(supportedEventTypes))
	for _, t := range supportedEventTypes {
		keys = append(keys, RoutingKey(t))
	}
	return keys
}

// DLQName returns the dead-letter queue name for a queue, e.g. dlq.budget.events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
