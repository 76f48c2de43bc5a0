package repository

import (
	"context"
	"errors"

	"foodorder/internal/model"
)

var (
	// ErrOrderExists is returned when creating an order whose id is taken.
	ErrOrderExists = errors.New("order already exists")

	// ErrOrderNotFound is returned when updating an order that does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidKey is returned for identifiers that cannot form a store path.
	ErrInvalidKey = errors.New("invalid identifier")
)

// MenuRepository defines the interface for menu catalogue data access.
type MenuRepository interface {
	// ListByBranch retrieves the items sold at a branch, optionally limited
	// to one category, with pagination support.
	ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error)

	// GetByID retrieves a single menu item by its ID.
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)

	// Upsert inserts or replaces menu items.
	Upsert(ctx context.Context, items []model.MenuItem) error
}

// CartRepository defines the interface for cart persistence.
type CartRepository interface {
	// Get retrieves the cart of a customer at a branch. It returns nil when
	// the customer has no cart there yet.
	Get(ctx context.Context, customerID, branchID string) (*model.Cart, error)

	// Update applies fn to the stored cart, or to a new empty one, and
	// writes the result unless fn reports no change. Concurrent updates of
	// the same cart are serialised by the store.
	Update(ctx context.Context, customerID, branchID string, fn func(cart *model.Cart) (bool, error)) (*model.Cart, bool, error)
}

// OrderRepository defines the interface for order persistence.
type OrderRepository interface {
	// NextID allocates the next order id from the atomic order counter.
	NextID(ctx context.Context) (string, error)

	// Create stores a new order. It fails with ErrOrderExists if the id is taken.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order. It returns nil when the order does not exist.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// Update applies fn to the current order inside a read-modify-write
	// transaction and stores the result. fn may run more than once; an error
	// from fn aborts the update without writing.
	Update(ctx context.Context, id string, fn func(order *model.Order) error) (*model.Order, error)

	// List retrieves the orders matching filter, oldest first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// Watch streams the order every time it changes until ctx is cancelled.
	Watch(ctx context.Context, id string) (<-chan *model.Order, error)
}
