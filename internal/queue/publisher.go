// AngelaMos | 2026
// publisher.go

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPublisherClosed = errors.New("publisher closed")

// Publisher keeps one broker connection and channel, redialing lazily after
// either is lost. Messages are persistent and routed through the default
// exchange to a durable queue of the same name.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	closed   bool
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, declared: make(map[string]bool)}
}

func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if err := p.ensureChannel(); err != nil {
		return err
	}

	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", queue, err)
	}

	return nil
}

// Ping reports whether the broker is reachable, dialing if necessary.
func (p *Publisher) Ping(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	return p.ensureChannel()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

func (p *Publisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		//nolint:errcheck // connection is unusable without a channel
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) reset() {
	if p.conn != nil {
		//nolint:errcheck // dropping a broken connection
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	p.declared = make(map[string]bool)
}
