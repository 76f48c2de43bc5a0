package model

import (
	"fmt"
	"strings"
)

// Status is the progress of an order line.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusConfirmed       Status = "Confirmed"
	StatusPreparing       Status = "Preparing"
	StatusReadyForPickup  Status = "ReadyForPickup"
	StatusDeliveryPending Status = "DeliveryPending"
	StatusDelivering      Status = "Delivering"
	StatusCompleted       Status = "Completed"
	StatusCancelled       Status = "Cancelled"
)

// progression lists the non-cancelled states in delivery order.
var progression = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusDeliveryPending,
	StatusDelivering,
	StatusCompleted,
}

func (s Status) String() string {
	return string(s)
}

// Rank returns the position of s in the delivery progression, or -1 for
// Cancelled and unknown values.
func (s Status) Rank() int {
	for i, p := range progression {
		if p == s {
			return i
		}
	}
	return -1
}

// Next returns the state that directly follows s, if any.
func (s Status) Next() (Status, bool) {
	r := s.Rank()
	if r < 0 || r+1 >= len(progression) {
		return "", false
	}
	return progression[r+1], true
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusCancelled || s.Rank() >= 0
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(value string) (Status, error) {
	v := strings.TrimSpace(value)
	if strings.EqualFold(v, string(StatusCancelled)) {
		return StatusCancelled, nil
	}
	for _, s := range progression {
		if strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", value)
}

// UnmarshalText normalises the casing of stored and requested statuses.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PaymentStatus tracks whether the order has been paid for.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)
