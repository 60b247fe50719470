package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPTrigger publishes tasks to a durable queue on the default exchange.
type AMQPTrigger struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	mu      sync.Mutex
}

func NewAMQPTrigger(url, queue string) (*AMQPTrigger, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPTrigger{conn: conn, channel: channel, queue: queue}, nil
}

func (t *AMQPTrigger) Trigger(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	// amqp channels are not safe for concurrent publishing
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channel.PublishWithContext(ctx,
		"",
		t.queue,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    task.MessageID,
			Body:         data,
		},
	)
}

func (t *AMQPTrigger) Close() error {
	if err := t.channel.Close(); err != nil {
		_ = t.conn.Close()
		return err
	}
	return t.conn.Close()
}
