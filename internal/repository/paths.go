package repository

import (
	"fmt"
	"strings"

	"foodorder/internal/store"
)

const (
	cartsRoot    = "carts"
	ordersRoot   = "orders"
	orderCounter = "orders"
)

func checkSegment(kind, value string) error {
	if value == "" || strings.ContainsAny(value, "/ ") {
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, kind, value)
	}
	return nil
}

func cartPath(customerID, branchID string) (string, error) {
	if err := checkSegment("customer id", customerID); err != nil {
		return "", err
	}
	if err := checkSegment("branch id", branchID); err != nil {
		return "", err
	}
	return store.Join(cartsRoot, customerID, branchID), nil
}

func orderPath(id string) (string, error) {
	if err := checkSegment("order id", id); err != nil {
		return "", err
	}
	return store.Join(ordersRoot, id), nil
}
