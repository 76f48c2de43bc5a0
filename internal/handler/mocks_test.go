package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"foodorder/internal/middleware"
	"foodorder/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

// MockMenuService is a mock implementation of MenuService.
type MockMenuService struct {
	mock.Mock
}

func (m *MockMenuService) ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error) {
	args := m.Called(ctx, branchID, category, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *MockMenuService) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MenuItem), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetOrCreateCart(ctx context.Context, customerID, branchID string) (*model.Cart, error) {
	args := m.Called(ctx, customerID, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) UpsertItem(ctx context.Context, cart *model.Cart, item model.CartItem) (bool, error) {
	args := m.Called(ctx, cart, item)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartService) AddMenuItem(ctx context.Context, cart *model.Cart, menuItemID string, quantity int) (bool, error) {
	args := m.Called(ctx, cart, menuItemID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, cart *model.Cart, menuItemID string) (bool, error) {
	args := m.Called(ctx, cart, menuItemID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, cart *model.Cart) (bool, error) {
	args := m.Called(ctx, cart)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartService) RemoveOrdered(ctx context.Context, cart *model.Cart, ordered []model.CartItem) error {
	args := m.Called(ctx, cart, ordered)
	return args.Error(0)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, cart *model.Cart, contact model.Contact) (*model.Order, error) {
	args := m.Called(ctx, cart, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Transition(ctx context.Context, p model.Principal, orderID string, req model.TransitionRequest) (*model.Order, error) {
	args := m.Called(ctx, p, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Claim(ctx context.Context, p model.Principal, orderID string) (*model.Order, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Complete(ctx context.Context, p model.Principal, orderID string) (*model.Order, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, p model.Principal, orderID string) (*model.Order, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, p model.Principal, filter model.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) WatchOrder(ctx context.Context, p model.Principal, orderID string) (<-chan *model.Order, error) {
	args := m.Called(ctx, p, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *model.Order), args.Error(1)
}

var (
	customer    = model.Principal{Role: model.RoleCustomer, ID: "c1"}
	employee    = model.Principal{Role: model.RoleEmployee, ID: "e1", BranchID: "b1"}
	deliveryman = model.Principal{Role: model.RoleDeliveryman, ID: "d1"}
)

// serve routes one request to h through a chi router so URL parameters
// resolve, acting as p when it is not nil.
func serve(method, pattern, target string, body string, p *model.Principal, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
