// Package amqp publishes inbox events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// Config holds RabbitMQ settings.
type Config struct {
	URL      string
	Exchange string
}

// Publisher implements events.Publisher over a durable topic exchange with
// publisher confirms.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *logger.Logger

	mu sync.Mutex
	ch *amqp091.Channel
}

// Dial connects, declares the exchange and enables confirms.
func Dial(cfg Config, log *logger.Logger) (*Publisher, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "inbox.events"
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable confirms: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange, logger: log}, nil
}

// RoutingKey is <event type>.<team id>, e.g. message.received.t1.
func RoutingKey(event *model.InboxEvent) string {
	return string(event.Type) + "." + event.TeamID
}

// Publish sends event and waits for the broker confirm.
func (p *Publisher) Publish(ctx context.Context, event *model.InboxEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, RoutingKey(event), false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     event.ID,
			CorrelationId: event.ConversationID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked event %s", event.ID)
	}
	p.logger.Debug("published", zap.String("key", RoutingKey(event)), zap.String("exchange", p.exchange))
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	return p.conn.Close()
}

// IsConnected reports whether the connection is open.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}
