package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"foodorder/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrNack is returned when the broker refuses a message.
var ErrNack = errors.New("publish nack from broker")

// confirmation resolves to the broker's ack or nack for one delivery tag.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// amqpChannel publishes with a deferred confirmation per message.
type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// RabbitPublisher publishes events to a topic exchange and waits for the
// broker to confirm each message.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   zerolog.Logger
}

// DialRabbit connects to RabbitMQ, declares the exchange and enables
// publisher confirms.
func DialRabbit(cfg config.RabbitMQConfig, logger zerolog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p := newRabbitPublisher(amqpChannel{ch}, cfg.Exchange, logger)
	p.conn = conn

	p.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to rabbitmq")

	return p, nil
}

func newRabbitPublisher(ch channel, exchange string, logger zerolog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("publisher", "rabbitmq").Str("exchange", exchange).Logger(),
	}
}

// Publish sends the event as a persistent JSON message and blocks until the
// broker acks or nacks it. A confirmation that arrives after ctx is done
// belongs to its own delivery tag and never to a later message.
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	conf, err := p.ch.PublishConfirmed(ctx, p.exchange, event.RoutingKey(), amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to publish event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_id", event.ID).Msg("no confirmation for event")
		return err
	}
	if !acked {
		p.logger.Warn().Str("event_id", event.ID).Msg("broker rejected event")
		return ErrNack
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("routing_key", event.RoutingKey()).
		Str("order_id", event.OrderID).
		Msg("event published")

	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
