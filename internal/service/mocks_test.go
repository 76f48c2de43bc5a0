package service

import (
	"context"
	"testing"

	"foodorder/internal/events"
	"foodorder/internal/model"
	"foodorder/internal/repository"
	"foodorder/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMenuRepository is a mock implementation of MenuRepository.
type MockMenuRepository struct {
	mock.Mock
}

func (m *MockMenuRepository) ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error) {
	args := m.Called(ctx, branchID, category, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *MockMenuRepository) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MenuItem), args.Error(1)
}

func (m *MockMenuRepository) Upsert(ctx context.Context, items []model.MenuItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

var (
	customer    = model.Principal{Role: model.RoleCustomer, ID: "c1"}
	employee    = model.Principal{Role: model.RoleEmployee, ID: "e1", BranchID: "b1"}
	outsider    = model.Principal{Role: model.RoleEmployee, ID: "e2", BranchID: "b2"}
	admin       = model.Principal{Role: model.RoleAdmin, ID: "a1"}
	deliveryman = model.Principal{Role: model.RoleDeliveryman, ID: "d1"}
	rival       = model.Principal{Role: model.RoleDeliveryman, ID: "d2"}
)

func testMenu() []model.MenuItem {
	return []model.MenuItem{
		{ID: "m1", Name: "Margherita", Category: "pizza", Price: decimal.NewFromInt(500), BranchIDs: []string{"b1"}},
		{ID: "m2", Name: "Lemonade", Category: "drinks", Price: decimal.RequireFromString("12.50"), BranchIDs: []string{"b1", "b2"}},
		{ID: "m3", Name: "Tiramisu", Category: "dessert", Price: decimal.RequireFromString("180"), BranchIDs: []string{"b1"}},
		{ID: "m9", Name: "Sushi", Category: "other", Price: decimal.NewFromInt(900), BranchIDs: []string{"b2"}},
	}
}

type harness struct {
	mem       *store.Memory
	carts     CartService
	orders    OrderService
	publisher *MockPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := store.NewMemory()
	logger := zerolog.Nop()

	publisher := &MockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	carts := NewCartService(
		repository.NewCartRepository(mem, logger),
		repository.NewMemoryMenuRepository(testMenu()...),
		logger,
	)
	orders := NewOrderService(repository.NewOrderRepository(mem, logger), carts, publisher, logger)

	return &harness{mem: mem, carts: carts, orders: orders, publisher: publisher}
}

// cartWith builds and stores a cart for the customer at branch b1.
func (h *harness) cartWith(t *testing.T, customerID string, quantities map[string]int) *model.Cart {
	t.Helper()
	ctx := context.Background()

	cart, err := h.carts.GetOrCreateCart(ctx, customerID, "b1")
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2", "m3"} {
		if qty, ok := quantities[id]; ok {
			_, err := h.carts.AddMenuItem(ctx, cart, id, qty)
			require.NoError(t, err)
		}
	}
	return cart
}

// placeOrder places an order with one line per menu item given.
func (h *harness) placeOrder(t *testing.T, quantities map[string]int) *model.Order {
	t.Helper()

	cart := h.cartWith(t, customer.ID, quantities)
	order, err := h.orders.PlaceOrder(context.Background(), cart, model.Contact{Name: "Ann", Phone: "555", Address: "1 Main St"})
	require.NoError(t, err)
	return order
}

// advance bulk-transitions the order step by step until it reaches target.
func (h *harness) advance(t *testing.T, orderID string, target model.Status) *model.Order {
	t.Helper()
	ctx := context.Background()

	order, err := h.orders.GetOrder(ctx, admin, orderID)
	require.NoError(t, err)
	for order.Status != target {
		next, ok := order.Status.Next()
		require.True(t, ok)
		order, err = h.orders.Transition(ctx, employee, orderID, model.TransitionRequest{From: order.Status, To: next})
		require.NoError(t, err)
	}
	return order
}
