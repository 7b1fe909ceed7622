package worker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrderSource hands out the stream of raw order deliveries.
type OrderSource interface {
	ConsumeOrders() (<-chan amqp.Delivery, error)
}

// Consumer runs the work-queue loop. Every handled terminal path
// acknowledges the message; only a plumbing failure inside the handler
// results in a negative acknowledgment, without requeue, so a poison
// message can never loop.
type Consumer struct {
	source OrderSource
	orch   *Orchestrator
}

func NewConsumer(source OrderSource, orch *Orchestrator) *Consumer {
	return &Consumer{source: source, orch: orch}
}

// Run consumes until the context is cancelled or the delivery channel
// closes (broker connection lost).
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.ConsumeOrders()
	if err != nil {
		return fmt.Errorf("starting order consumer: %w", err)
	}

	slog.Info("worker started, waiting for jobs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("order delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if err := c.orch.HandleMessage(ctx, d.Body); err != nil {
		slog.Error("processing order message", "error", err)
		if nerr := d.Nack(false, false); nerr != nil {
			slog.Error("nack failed", "error", nerr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		slog.Error("ack failed", "error", err)
	}
}
