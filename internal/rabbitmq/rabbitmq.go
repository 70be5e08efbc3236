package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeTopic  = "topic"
	ExchangeFanout = "fanout"
)

// Channel is the subset of *amqp.Channel the publishers use.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Client owns a RabbitMQ connection and its channel.
type Client struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	logger  *zap.Logger
}

// Connect dials url, retrying with exponential backoff up to attempts times.
func Connect(ctx context.Context, url string, attempts int, logger *zap.Logger) (*Client, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	backoff := time.Second
	for i := 1; i <= attempts; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("failed to open channel: %w", chErr)
			}
			logger.Info("connected to RabbitMQ")
			return &Client{Conn: conn, Channel: ch, logger: logger}, nil
		}

		logger.Warn("RabbitMQ connect attempt failed", zap.Int("attempt", i), zap.Error(err))
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.Channel != nil {
		if err := c.Channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	c.logger.Info("RabbitMQ connection closed")
	return nil
}

// Publisher publishes JSON messages to one exchange.
type Publisher struct {
	ch       Channel
	exchange string
	kind     string
	logger   *zap.Logger
}

// NewPublisher declares exchange as a durable exchange of the given kind.
func NewPublisher(ch Channel, exchange, kind string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, kind: kind, logger: logger}, nil
}

// Exchange returns the exchange name.
func (p *Publisher) Exchange() string {
	return p.exchange
}

// Publish sends body under routingKey. Fanout exchanges ignore the key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p.kind == ExchangeFanout {
		routingKey = ""
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.exchange, err)
	}

	p.logger.Debug("message published",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
	)
	return nil
}
