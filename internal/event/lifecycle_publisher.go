package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LifecyclePublisher publishes policy lifecycle events to RabbitMQ. A
// nil publisher is usable: publishing becomes a logged no-op, so the
// workflow never depends on the broker being up.
type LifecyclePublisher struct {
	conn *RabbitMQConnection

	// sessions publish concurrently
	published atomic.Int64
	failed    atomic.Int64
}

func NewLifecyclePublisher(conn *RabbitMQConnection) *LifecyclePublisher {
	return &LifecyclePublisher{conn: conn}
}

// Counts reports how many events this process has published and how
// many attempts failed.
func (p *LifecyclePublisher) Counts() (published, failed int64) {
	if p == nil {
		return 0, 0
	}
	return p.published.Load(), p.failed.Load()
}

// Publish sends the event to the lifecycle queue, which the connection
// declared at startup.
func (p *LifecyclePublisher) Publish(ctx context.Context, evt PolicyLifecycleEvent) error {
	if p == nil || p.conn == nil {
		slog.Debug("Lifecycle publisher not connected, dropping event",
			"event_type", evt.EventType, "session_id", evt.SessionID)
		return nil
	}

	body, err := json.Marshal(evt)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                   // exchange
		PolicyLifecycleQueue, // routing key (queue name)
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	p.published.Add(1)
	slog.Info("Published lifecycle event",
		"event_type", evt.EventType,
		"session_id", evt.SessionID,
		"queue", PolicyLifecycleQueue)
	return nil
}
