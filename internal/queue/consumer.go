// AngelaMos | 2026
// consumer.go

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. A returned error rejects the message
// without requeueing it.
type Handler func(ctx context.Context, body []byte) error

type Consumer struct {
	url      string
	prefetch int
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewConsumer(url string, prefetch int, handlers map[string]Handler, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{url: url, prefetch: prefetch, handlers: handlers, logger: logger}
}

// Run consumes every registered queue until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("queue consumer dial failed",
				"error", err,
				"retry_in", backoff,
			)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		//nolint:errcheck // connection is being replaced
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("queue consumer disconnected, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("queue consumer qos failed", "error", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(c.handlers))

	for queue, handler := range c.handlers {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", queue, err)
		}

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}

		wg.Add(1)
		go func(queue string, handler Handler, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			errCh <- c.drain(ctx, queue, handler, deliveries)
		}(queue, handler, deliveries)
	}

	c.logger.Info("queue consumer started", "queues", len(c.handlers))

	select {
	case <-ctx.Done():
		//nolint:errcheck // closing the channel ends every delivery stream
		_ = ch.Close()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		//nolint:errcheck // tear down sibling streams before reconnecting
		_ = ch.Close()
		wg.Wait()
		return err
	}
}

func (c *Consumer) drain(
	ctx context.Context,
	queue string,
	handler Handler,
	deliveries <-chan amqp.Delivery,
) error {
	for d := range deliveries {
		if err := handler(ctx, d.Body); err != nil {
			c.logger.Error("queue message rejected",
				"queue", queue,
				"error", err,
			)
			//nolint:errcheck // nothing to do if the reject is lost
			_ = d.Nack(false, false)
			continue
		}
		//nolint:errcheck // redelivered if the ack is lost
		_ = d.Ack(false)
	}
	return errors.New(queue + ": deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
