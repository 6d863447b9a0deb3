package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQInboxPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQInboxPublisher(client *RabbitMQ) *RabbitMQInboxPublisher {
	return &RabbitMQInboxPublisher{client: client}
}

func (p *RabbitMQInboxPublisher) PublishInbox(ctx context.Context, msg InboxMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid inbox message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal inbox message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    msg.NotificationID,
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, "", InboxQueueName, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish inbox message: %w", err)
	}

	return nil
}

func (p *RabbitMQInboxPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
