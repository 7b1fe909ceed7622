package broker

import "fmt"

// Exchange and queue topology shared by the worker and the gateway.
const (
	OrdersExchange = "orders"
	EventsExchange = "events"

	SearchQueue      = "orders.search"
	SearchRoutingKey = "search"
)

// OrderKey builds the routing key for an order-level lifecycle event,
// e.g. "order.o1.started".
func OrderKey(orderID, category string) string {
	return fmt.Sprintf("order.%s.%s", orderID, category)
}

// ProviderKey builds the routing key for a per-provider update,
// e.g. "order.o1.provider.Copernicus.ok".
func ProviderKey(orderID, provider, status string) string {
	return fmt.Sprintf("order.%s.provider.%s.%s", orderID, provider, status)
}

// OrderPattern is the topic binding that matches every event for one order
// and nothing else.
func OrderPattern(orderID string) string {
	return fmt.Sprintf("order.%s.#", orderID)
}
