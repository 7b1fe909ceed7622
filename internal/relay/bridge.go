// Package relay turns one order's topic subscription into a live in-process
// event stream for exactly one client connection.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/satwatch-io/satwatch/internal/broker"
	"github.com/satwatch-io/satwatch/pkg/models"
)

// endOfStream is the relay-internal sentinel marking the end of a stream.
// It never reaches the wire: the producer stops without emitting it.
const endOfStream = "__end__"

// EventSource creates per-order broker subscriptions. The returned cleanup
// must be best-effort and idempotent-safe: it removes the ephemeral queue,
// cancels the consumer and swallows every error.
type EventSource interface {
	SubscribeOrder(ctx context.Context, orderID string) (<-chan broker.Message, func(), error)
}

// Bridge builds Subscriptions over a shared event source.
type Bridge struct {
	source EventSource
}

func NewBridge(source EventSource) *Bridge {
	return &Bridge{source: source}
}

// Subscription is one client connection's exclusive view of one order's
// events. It is never shared and is torn down exactly once.
type Subscription struct {
	orderID string
	events  chan models.Event
	mbox    *mailbox
	cleanup func()
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Stream opens an ephemeral subscription bound to the order's topic pattern
// and starts pumping matching events. The caller must Close the returned
// subscription on every exit path.
func (b *Bridge) Stream(ctx context.Context, orderID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	msgs, cleanup, err := b.source.SubscribeOrder(subCtx, orderID)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		orderID: orderID,
		events:  make(chan models.Event),
		mbox:    newMailbox(),
		cleanup: cleanup,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.pump(msgs)
	go s.produce()

	return s, nil
}

// OrderID returns the order this subscription is bound to.
func (s *Subscription) OrderID() string { return s.orderID }

// Events yields the order's events in arrival order. The channel is closed
// after a terminal event has been yielded or the subscription is closed.
func (s *Subscription) Events() <-chan models.Event { return s.events }

// Close tears the subscription down: cancels the pump, removes the broker
// resources and wakes a blocked producer. Safe to call multiple times and
// never raises; teardown is best-effort.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		s.cleanup()
		s.mbox.Close()
	})
}

// pump decodes every matching broker message into the mailbox, in order.
// A decoding failure degrades to a generic update event carrying the raw
// payload rather than dropping the message. After the first terminal event
// the sentinel is enqueued and no further broker messages are consumed.
func (s *Subscription) pump(msgs <-chan broker.Message) {
	for msg := range msgs {
		var evt models.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			evt = models.Event{Type: models.EventUpdate, Raw: string(msg.Body)}
		}

		s.mbox.Put(evt)

		if evt.Terminal() {
			s.mbox.Put(models.Event{Type: endOfStream})
			return
		}
	}
}

// produce drains the mailbox into the events channel, stopping without
// emitting the sentinel.
func (s *Subscription) produce() {
	defer close(s.events)
	for {
		evt, ok := s.mbox.Take()
		if !ok || evt.Type == endOfStream {
			return
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}
