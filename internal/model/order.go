package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Contact is the customer's delivery details copied into an order.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderLine is one menu item of an order with its own status.
type OrderLine struct {
	CartItem
	LineNo int    `json:"lineNo"`
	Status Status `json:"status"`
}

// Order represents a placed customer order.
type Order struct {
	ID                    string          `json:"id"`
	BranchID              string          `json:"branchId"`
	CustomerID            string          `json:"customerId"`
	Contact               Contact         `json:"contact"`
	Status                Status          `json:"status"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus"`
	TotalPrice            decimal.Decimal `json:"totalPrice"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	DeliveredAt           *time.Time      `json:"deliveredAt,omitempty"`
	AssignedDeliverymanID string          `json:"assignedDeliverymanId,omitempty"`
	Items                 []OrderLine     `json:"items"`
}

// FormatOrderID renders a counter value as a human readable order id.
func FormatOrderID(seq int64) string {
	return fmt.Sprintf("o%03d", seq)
}

// AggregateStatus returns the least progressed status over all
// non-cancelled lines. An order whose lines are all cancelled is Cancelled.
func (o *Order) AggregateStatus() Status {
	agg := Status("")
	for _, line := range o.Items {
		if line.Status == StatusCancelled {
			continue
		}
		if agg == "" || line.Status.Rank() < agg.Rank() {
			agg = line.Status
		}
	}
	if agg == "" {
		return StatusCancelled
	}
	return agg
}

// Refresh recomputes the derived order-level status.
func (o *Order) Refresh() {
	o.Status = o.AggregateStatus()
}

// Line returns a pointer to the line with the given number.
func (o *Order) Line(lineNo int) *OrderLine {
	for i := range o.Items {
		if o.Items[i].LineNo == lineNo {
			return &o.Items[i]
		}
	}
	return nil
}

// Unassigned reports whether no deliveryman has claimed the order.
func (o *Order) Unassigned() bool {
	return o.AssignedDeliverymanID == ""
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	BranchID              string
	CustomerID            string
	AssignedDeliverymanID string
	Status                Status
	AvailableForDelivery  bool
}

// Matches reports whether the order satisfies every set field of the filter.
// AvailableForDelivery matches unassigned DeliveryPending orders and, when
// AssignedDeliverymanID is also set, the deliveryman's own orders.
func (f OrderFilter) Matches(o *Order) bool {
	if f.BranchID != "" && o.BranchID != f.BranchID {
		return false
	}
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.AvailableForDelivery {
		open := o.Status == StatusDeliveryPending && o.Unassigned()
		mine := f.AssignedDeliverymanID != "" && o.AssignedDeliverymanID == f.AssignedDeliverymanID
		return open || mine
	}
	if f.AssignedDeliverymanID != "" && o.AssignedDeliverymanID != f.AssignedDeliverymanID {
		return false
	}
	return true
}

// TransitionRequest asks to move one line, or every non-cancelled line when
// Line is nil, from the expected status to the target status.
type TransitionRequest struct {
	Line *int   `json:"line,omitempty"`
	From Status `json:"from"`
	To   Status `json:"to"`
}

// PlaceOrderRequest carries the delivery details for a new order.
type PlaceOrderRequest struct {
	Contact Contact `json:"contact"`
}

// CartItemRequest sets the quantity of a menu item in the cart.
type CartItemRequest struct {
	Quantity int `json:"quantity"`
}
