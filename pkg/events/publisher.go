// Package events publishes lifecycle notifications to an AMQP broker so
// downstream consumers (notifications, reporting) can react to request and
// calendar changes without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	EmittedAt time.Time   `json:"emitted_at"`
}

// Publisher writes lifecycle events to a single durable queue on the
// default exchange. The connection is lazy and rebuilt after a broker
// failure on the next publish. A nil *Publisher is a disabled bus:
// Publish and Close become no-ops.
type Publisher struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher configures a publisher without dialing yet.
func NewPublisher(url, queue string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue == "" {
		queue = "agenda.lifecycle"
	}
	return &Publisher{url: url, queue: queue, logger: logger}
}

// Publish sends one event. The event name travels inside the message body
// so consumers of the shared queue can dispatch on it.
func (p *Publisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if p == nil {
		return nil
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(envelope{Event: event, Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish lifecycle event: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial event bus: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open event bus channel: %w", err)
	}
	// Durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare event queue: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("event bus connected", zap.String("queue", p.queue))
	return ch, nil
}

func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
