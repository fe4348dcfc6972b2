// Package event defines order lifecycle notifications emitted after state
// changes are committed.
package event

import (
	"context"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	OrderCreated    Type = "order.created"
	PaymentReceived Type = "order.payment_received"
	OrderAdvanced   Type = "order.advanced"
	OrderCanceled   Type = "order.canceled"
	OrderExpired    Type = "order.expired"
)

// Event is a committed lifecycle change of one order.
type Event struct {
	Type       Type
	OrderID    string
	OrderCode  string
	OutletID   string
	Status     string
	OccurredAt time.Time
}

// Publisher delivers events to downstream consumers. Delivery is best
// effort: the state change has already been committed when Publish runs.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
