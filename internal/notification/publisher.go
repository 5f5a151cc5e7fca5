package notification

import (
	"context"
	"encoding/json"
	"fmt"
)

// Broker topology shared by the producer and the consumer service. Messages
// rejected by the consumer without requeue are routed to the DLQ by the
// broker, never dropped.
const (
	Exchange   = "giftree.notification.exchange"
	Queue      = "giftree.notification.queue"
	RoutingKey = "giftree.notification"

	DeadLetterExchange   = "giftree.notification.dlx"
	DeadLetterQueue      = "giftree.notification.dlq"
	DeadLetterRoutingKey = "giftree.notification.deadletter"
)

// BrokerPublisher is the slice of the messaging client the adapter needs.
type BrokerPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// AMQPPublisher serializes events and publishes them to the notification
// exchange under the fixed routing key.
type AMQPPublisher struct {
	client BrokerPublisher
}

func NewAMQPPublisher(client BrokerPublisher) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}
	if err := p.client.Publish(ctx, Exchange, RoutingKey, body); err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}
	return nil
}
