package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher sends events as persistent JSON messages to one durable
// queue through the default exchange.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(url string, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    ev.ID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
