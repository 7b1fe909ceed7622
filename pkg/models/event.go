package models

// Lifecycle event types published on the events exchange.
const (
	EventOrderStarted   = "order.started"
	EventOrderComplete  = "order.complete"
	EventOrderFailed    = "order.failed"
	EventProviderUpdate = "provider.update"
	// EventUpdate is the degraded form used when a broker message cannot
	// be decoded into an Event; the raw payload is preserved.
	EventUpdate = "update"
)

// Provider update statuses.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// Event is the lifecycle event document published for an order. It is a
// tagged union over Type; unused fields are omitted from the wire form.
// Events are write-once: they are constructed, published, and never revised.
type Event struct {
	Type          string          `json:"type"`
	OrderID       string          `json:"orderId,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	Status        string          `json:"status,omitempty"`
	Error         string          `json:"error,omitempty"`
	Features      []Feature       `json:"features,omitempty"`
	Opportunities []Opportunity   `json:"opportunities,omitempty"`
	Task          *TaskDescriptor `json:"order,omitempty"`
	Raw           string          `json:"raw,omitempty"`
}

// Terminal reports whether the event ends an order's lifecycle.
func (e Event) Terminal() bool {
	return e.Type == EventOrderComplete || e.Type == EventOrderFailed
}
