package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/hiring-negotiation/internal/queue"
)

// EventPublisher announces completed hirings to the rest of the platform.
// Failures never undo or fail the negotiation that produced the event.
type EventPublisher interface {
	PublishHiringCompleted(ctx context.Context, ev q.HiringCompletedEvent) error
}

// AMQPPublisher publishes events to RabbitMQ.  Each publish dials its own
// connection, so the publisher holds no state that can go stale between
// hirings.
type AMQPPublisher struct {
	URL string
}

// PublishHiringCompleted sends ev to the durable hiring.completed queue as a
// persistent message.
func (p AMQPPublisher) PublishHiringCompleted(ctx context.Context, ev q.HiringCompletedEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.HiringCompletedQueue, // name
		true,                   // durable
		false,                  // autoDelete
		false,                  // exclusive
		false,                  // noWait
		nil,                    // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.ResponseID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.HiringCompletedQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
