package order

import (
	"strings"
	"time"
)

// Order event types published on the bus.
const (
	EventCreated          = "order.created"
	EventPaymentCompleted = "order.payment_completed"
	EventStatusPrefix     = "order.status_"
	EventStatusProcessing = EventStatusPrefix + "processing"
	EventStatusCompleted  = EventStatusPrefix + "completed"
)

// Event is emitted whenever an order changes in a way the sync pipeline cares about.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StatusEvent returns the event type for a transition into status.
func StatusEvent(status string) string {
	return EventStatusPrefix + strings.ToLower(strings.TrimSpace(status))
}
