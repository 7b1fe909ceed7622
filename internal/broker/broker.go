package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/satwatch-io/satwatch/pkg/models"
)

// Message is one raw broker delivery handed to a subscriber.
type Message struct {
	RoutingKey string
	Body       []byte
}

// Broker owns the process-wide AMQP connection and the publish channel.
// Each relay subscription opens its own scoped channel so ephemeral queue
// lifecycles never interfere with each other.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and declares the shared topology: a durable
// direct exchange for order intake and a durable topic exchange for
// lifecycle events.
func Connect(url string, prefetch int) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting qos: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		conn.Close()
		return nil, err
	}

	return &Broker{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(OrdersExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring %s exchange: %w", OrdersExchange, err)
	}
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring %s exchange: %w", EventsExchange, err)
	}
	return nil
}

// Close tears down the connection and all channels derived from it.
func (b *Broker) Close() error {
	return b.conn.Close()
}

// PublishOrder enqueues a job onto the durable work queue. The correlation
// id is injected into the body so the worker and every downstream event can
// be threaded back to the order.
func (b *Broker) PublishOrder(ctx context.Context, orderID string, payload map[string]any) error {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["orderId"] = orderID

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding order %s: %w", orderID, err)
	}

	return b.ch.PublishWithContext(ctx, OrdersExchange, SearchRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         raw,
	})
}

// PublishEvent publishes a lifecycle event onto the topic exchange under the
// given routing key. The order id is always restated in the body so
// subscribers never depend on the routing key alone.
func (b *Broker) PublishEvent(ctx context.Context, routingKey string, evt models.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.Type, err)
	}

	return b.ch.PublishWithContext(ctx, EventsExchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        raw,
	})
}

// ConsumeOrders declares the durable work queue, binds it to the orders
// exchange and starts a manually-acknowledged consumer.
func (b *Broker) ConsumeOrders() (<-chan amqp.Delivery, error) {
	q, err := b.ch.QueueDeclare(SearchQueue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declaring %s queue: %w", SearchQueue, err)
	}
	if err := b.ch.QueueBind(q.Name, SearchRoutingKey, OrdersExchange, false, nil); err != nil {
		return nil, fmt.Errorf("binding %s queue: %w", SearchQueue, err)
	}

	deliveries, err := b.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming %s queue: %w", SearchQueue, err)
	}
	return deliveries, nil
}

// SubscribeOrder creates an exclusive, auto-deleted queue bound to one
// order's topic pattern and starts an auto-acknowledged consumer on a
// dedicated channel. The returned cleanup is best-effort: it unbinds and
// deletes the queue, cancels the consumer and closes the channel, swallowing
// every error, and is safe to call after the connection dropped.
func (b *Broker) SubscribeOrder(ctx context.Context, orderID string) (<-chan Message, func(), error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("opening subscription channel: %w", err)
	}

	name := fmt.Sprintf("sse-%s-%s", orderID, uuid.NewString())
	pattern := OrderPattern(orderID)

	q, err := ch.QueueDeclare(name, false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declaring subscription queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, pattern, EventsExchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("binding subscription queue: %w", err)
	}

	tag := q.Name
	deliveries, err := ch.Consume(q.Name, tag, true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consuming subscription queue: %w", err)
	}

	msgs := make(chan Message)
	go func() {
		defer close(msgs)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case msgs <- Message{RoutingKey: d.RoutingKey, Body: d.Body}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		if err := ch.QueueUnbind(q.Name, pattern, EventsExchange, nil); err != nil {
			slog.Debug("unbinding subscription queue", "queue", q.Name, "error", err)
		}
		if _, err := ch.QueueDelete(q.Name, false, false, false); err != nil {
			slog.Debug("deleting subscription queue", "queue", q.Name, "error", err)
		}
		if err := ch.Cancel(tag, false); err != nil {
			slog.Debug("cancelling subscription consumer", "queue", q.Name, "error", err)
		}
		if err := ch.Close(); err != nil {
			slog.Debug("closing subscription channel", "queue", q.Name, "error", err)
		}
	}

	return msgs, cleanup, nil
}

// Ping verifies the connection is still open.
func (b *Broker) Ping() error {
	if b.conn.IsClosed() {
		return fmt.Errorf("broker connection closed")
	}
	return nil
}
