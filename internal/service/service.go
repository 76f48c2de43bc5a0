package service

import (
	"context"

	"foodorder/internal/model"
)

// MenuService defines read operations on the catalogue.
type MenuService interface {
	// ListByBranch retrieves the items sold at a branch with pagination.
	ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error)

	// GetByID retrieves a single menu item by ID.
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)
}

// CartService is the single place carts are mutated. Every mutating call
// applies its change to the stored cart in one read-modify-write, so
// concurrent requests never drop each other's changes, and refreshes the
// cart passed in with the stored result.
type CartService interface {
	// GetOrCreateCart returns the stored cart or a fresh, unsaved one.
	GetOrCreateCart(ctx context.Context, customerID, branchID string) (*model.Cart, error)

	// UpsertItem sets the quantity of item in the cart, adding it if needed.
	// It reports false and writes nothing when the quantity is unchanged.
	UpsertItem(ctx context.Context, cart *model.Cart, item model.CartItem) (bool, error)

	// AddMenuItem snapshots a catalogue item into the cart with the quantity.
	AddMenuItem(ctx context.Context, cart *model.Cart, menuItemID string, quantity int) (bool, error)

	// RemoveItem drops the menu item from the cart. Removing an absent item
	// is not an error; it reports false and writes nothing.
	RemoveItem(ctx context.Context, cart *model.Cart, menuItemID string) (bool, error)

	// Clear empties the cart. It reports false when it was already empty.
	Clear(ctx context.Context, cart *model.Cart) (bool, error)

	// RemoveOrdered drops the entries of ordered from the cart, keeping
	// anything added or changed after the order was built.
	RemoveOrdered(ctx context.Context, cart *model.Cart, ordered []model.CartItem) error
}

// OrderService places orders and drives their status.
type OrderService interface {
	// PlaceOrder turns the cart into a new Pending order and removes the
	// ordered entries from the stored cart. When only that removal fails
	// the order is returned together with the error.
	PlaceOrder(ctx context.Context, cart *model.Cart, contact model.Contact) (*model.Order, error)

	// Transition moves one line, or every non-cancelled line, between states.
	Transition(ctx context.Context, principal model.Principal, orderID string, req model.TransitionRequest) (*model.Order, error)

	// Claim assigns a DeliveryPending order to the calling deliveryman.
	Claim(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error)

	// Complete marks a delivered order as completed and paid.
	Complete(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error)

	// GetOrder retrieves an order visible to the principal.
	GetOrder(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error)

	// ListOrders retrieves the orders visible to the principal. Only the
	// Status field of filter is taken from the caller.
	ListOrders(ctx context.Context, principal model.Principal, filter model.OrderFilter) ([]model.Order, error)

	// WatchOrder streams the current order and every later change until ctx
	// is cancelled.
	WatchOrder(ctx context.Context, principal model.Principal, orderID string) (<-chan *model.Order, error)
}
