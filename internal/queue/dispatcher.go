// AngelaMos | 2026
// dispatcher.go

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher hands events to the broker when one is configured and runs the
// matching local handler in the background otherwise, or when publishing
// fails. Callers treat dispatch as best-effort.
type Dispatcher struct {
	pub     *Publisher
	local   map[string]Handler
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(pub *Publisher, local map[string]Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{pub: pub, local: local, timeout: 30 * time.Second, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, queue string, v any) error {
	if d.pub != nil {
		err := d.pub.Publish(ctx, queue, v)
		if err == nil {
			return nil
		}
		d.logger.Warn("queue publish failed, handling locally",
			"queue", queue,
			"error", err,
		)
	}

	handler, ok := d.local[queue]
	if !ok {
		return fmt.Errorf("dispatch %s: no local handler", queue)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}

	go func() {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := handler(hctx, body); err != nil {
			d.logger.Error("local event handler failed",
				"queue", queue,
				"error", err,
			)
		}
	}()

	return nil
}
