package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a menu item snapshot taken when it was added to a cart.
type CartItem struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	ImageRef   string          `json:"imageRef,omitempty"`
}

// Subtotal returns price multiplied by quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a customer's basket at one branch.
type Cart struct {
	ID         string          `json:"id"`
	BranchID   string          `json:"branchId"`
	CustomerID string          `json:"customerId"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// CartID returns the deterministic cart identifier for a customer and branch.
func CartID(customerID, branchID string) string {
	return fmt.Sprintf("cart_%s_%s", customerID, branchID)
}

// NewCart returns an empty cart for the customer at the branch.
func NewCart(customerID, branchID string) *Cart {
	return &Cart{
		ID:         CartID(customerID, branchID),
		BranchID:   branchID,
		CustomerID: customerID,
		Items:      []CartItem{},
		TotalPrice: decimal.Zero,
	}
}

// Find returns the index of the entry for menuItemID, or -1.
func (c *Cart) Find(menuItemID string) int {
	for i := range c.Items {
		if c.Items[i].MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

// Recalculate recomputes TotalItems and TotalPrice from Items.
func (c *Cart) Recalculate() {
	totalItems := 0
	totalPrice := decimal.Zero
	for _, item := range c.Items {
		totalItems += item.Quantity
		totalPrice = totalPrice.Add(item.Subtotal())
	}
	c.TotalItems = totalItems
	c.TotalPrice = totalPrice
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
