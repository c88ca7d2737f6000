package worker

import (
	"context"
	"log/slog"
	"time"

	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/telemetry"
)

// Handler processes one dequeued message body.
type Handler func(ctx context.Context, body []byte) error

// Consumer polls one queue and dispatches messages to its handler. A
// handler error is logged and the message dropped; there is no retry,
// requeue, or dead-letter path.
type Consumer struct {
	queue        *queue.RedisQueue
	name         string
	handler      Handler
	pollInterval time.Duration
}

// NewConsumer binds a handler to a named queue.
func NewConsumer(q *queue.RedisQueue, name string, handler Handler, pollInterval time.Duration) *Consumer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Consumer{queue: q, name: name, handler: handler, pollInterval: pollInterval}
}

// Run polls until context cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if depth, err := c.queue.Depth(ctx, c.name); err == nil {
			telemetry.QueueDepthGauge.WithLabelValues(c.name).Set(float64(depth))
		}

		body, err := c.queue.Dequeue(ctx, c.name)
		if err != nil {
			slog.Error("dequeue failed", "queue", c.name, "error", err)
			sleep(ctx, c.pollInterval)
			continue
		}
		if body == nil {
			sleep(ctx, c.pollInterval)
			continue
		}

		if err := c.handler(ctx, body); err != nil {
			slog.Error("message handling failed, dropping", "queue", c.name, "error", err)
		}
	}
}

// Drain processes messages until the queue is empty, then returns. Used by
// tests and batch invocations.
func (c *Consumer) Drain(ctx context.Context) error {
	for {
		body, err := c.queue.Dequeue(ctx, c.name)
		if err != nil {
			return err
		}
		if body == nil {
			return nil
		}
		if err := c.handler(ctx, body); err != nil {
			slog.Error("message handling failed, dropping", "queue", c.name, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
