// Package events publishes order lifecycle events to RabbitMQ so downstream
// consumers (email, analytics) can react without being in the request path.
//
// The publisher is optional: a nil *Publisher is valid and every method on
// it is a no-op, so local development works without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrderEvent is the JSON body published for every lifecycle transition.
type OrderEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"` // created, confirmed, payment_failed
	Total       float64   `json:"total"`
	Occurred    time.Time `json:"occurred"`
}

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// Connect dials the broker and declares the durable topic exchange.
func Connect(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange %q: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// Publish sends the event with routing key "order.<type>". High-value orders
// get a higher message priority.
func (p *Publisher) Publish(ctx context.Context, ev OrderEvent) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal order event: %w", err)
	}

	priority := uint8(5)
	if ev.Total > 200 {
		priority = 9
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		"order."+ev.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Priority:     priority,
			Timestamp:    ev.Occurred,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("events: publish order.%s for %s: %w", ev.Type, ev.OrderID, err)
	}
	return nil
}
