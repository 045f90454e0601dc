package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher publishes persistent JSON messages to durable queues.
// A nil Publisher is valid and drops every message, so callers never need
// to branch on whether the broker is configured.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewPublisher connects to RabbitMQ. Returns nil (not an error) when url is
// empty, since event publishing is optional.
func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		log.Warn().Msg("AMQP URL not configured, event publishing disabled")
		return nil, nil
	}

	p := &Publisher{url: url, declared: make(map[string]bool)}
	if err := p.connect(); err != nil {
		return nil, err
	}

	log.Info().Msg("Connected to RabbitMQ")
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	p.declared = make(map[string]bool)
	return nil
}

// Publish marshals the event and sends it to the named durable queue.
// Errors are logged and returned so callers can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, queueName string, event interface{}) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("queue", queueName).Msg("Failed to marshal event")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			log.Error().Err(err).Str("queue", queueName).Msg("AMQP reconnect failed")
			return err
		}
	}

	// Idempotent declare, durable so messages survive broker restarts.
	if !p.declared[queueName] {
		if _, err := p.ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			log.Error().Err(err).Str("queue", queueName).Msg("Queue declare failed")
			return err
		}
		p.declared[queueName] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Error().Err(err).Str("queue", queueName).Msg("Publish failed")
		return err
	}

	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
