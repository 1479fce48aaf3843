package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel the sink needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitSink publishes envelopes to a RabbitMQ exchange using the subject
// as routing key.
type RabbitSink struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

// NewRabbitSink dials url and opens a channel. An empty exchange publishes
// through the default exchange.
func NewRabbitSink(url, exchange string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}
	return &RabbitSink{conn: conn, channel: ch, exchange: exchange}, nil
}

func (s *RabbitSink) Backend() string { return "rabbitmq" }

// Send publishes env as a persistent JSON message.
func (s *RabbitSink) Send(ctx context.Context, subject string, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	err = s.channel.PublishWithContext(ctx, s.exchange, subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Type:         env.EventType,
		AppId:        env.Service,
		Timestamp:    env.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", subject, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *RabbitSink) Close() error {
	var firstErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
