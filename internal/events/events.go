// Package events publishes order lifecycle events to the message bus.
package events

import (
	"context"
	"time"

	"foodorder/internal/model"

	"github.com/google/uuid"
)

// Kind names an order lifecycle event. It doubles as the routing key suffix.
type Kind string

const (
	KindPlaced       Kind = "placed"
	KindTransitioned Kind = "transitioned"
	KindClaimed      Kind = "claimed"
	KindCompleted    Kind = "completed"
	KindCancelled    Kind = "cancelled"
)

// Event is a change to an order, published after it has been stored.
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	OrderID    string          `json:"orderId"`
	BranchID   string          `json:"branchId"`
	CustomerID string          `json:"customerId"`
	Status     model.Status    `json:"status"`
	Line       *int            `json:"line,omitempty"`
	From       model.Status    `json:"from,omitempty"`
	To         model.Status    `json:"to,omitempty"`
	Actor      model.Principal `json:"actor"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// RoutingKey returns the topic routing key, e.g. "order.placed".
func (e Event) RoutingKey() string {
	return "order." + string(e.Kind)
}

// NewEvent builds an event from the stored state of order.
func NewEvent(kind Kind, order *model.Order, actor model.Principal) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OrderID:    order.ID,
		BranchID:   order.BranchID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers order events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when the bus is disabled.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
