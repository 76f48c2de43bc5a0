package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"foodorder/internal/events"
	"foodorder/internal/model"
	"foodorder/internal/repository"
	"foodorder/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func lineNo(n int) *int { return &n }

func TestOrderService_PlaceOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cart := h.cartWith(t, "c1", map[string]int{"m1": 2})

	order, err := h.orders.PlaceOrder(ctx, cart, model.Contact{Name: "Ann", Phone: "555", Address: "1 Main St"})
	require.NoError(t, err)

	assert.Equal(t, "o001", order.ID)
	assert.Equal(t, "b1", order.BranchID)
	assert.Equal(t, "c1", order.CustomerID)
	assert.True(t, decimal.NewFromInt(1000).Equal(order.TotalPrice))
	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus)
	assert.False(t, order.CreatedAt.IsZero())
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].LineNo)
	assert.Equal(t, model.StatusPending, order.Items[0].Status)

	assert.Empty(t, cart.Items)
	stored, err := h.carts.GetOrCreateCart(ctx, "c1", "b1")
	require.NoError(t, err)
	assert.Empty(t, stored.Items)

	fetched, err := h.orders.GetOrder(ctx, customer, "o001")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(fetched.TotalPrice))

	h.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Kind == events.KindPlaced && e.OrderID == "o001"
	}))
}

func TestOrderService_PlaceOrder_EmptyCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orders.PlaceOrder(ctx, model.NewCart("c1", "b1"), model.Contact{})
	assert.ErrorIs(t, err, model.ErrEmptyCart)
	assert.Equal(t, int64(0), h.mem.Writes())

	order := h.placeOrder(t, map[string]int{"m1": 1})
	assert.Equal(t, "o001", order.ID, "the rejected placement consumed no id")
}

func TestOrderService_PlaceOrder_PersistFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cart := h.cartWith(t, "c1", map[string]int{"m1": 2})
	writes := h.mem.Writes()

	h.mem.SetFault(func(op, path string) error {
		if op == "update" && strings.HasPrefix(path, "orders/") {
			return store.ErrUnavailable
		}
		return nil
	})

	_, err := h.orders.PlaceOrder(ctx, cart, model.Contact{})
	assert.ErrorIs(t, err, model.ErrOrderPersistFailure)
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	assert.Equal(t, writes, h.mem.Writes())

	require.Len(t, cart.Items, 1)
	stored, err := h.carts.GetOrCreateCart(ctx, "c1", "b1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestOrderService_PlaceOrder_ClearFailureReturnsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cart := h.cartWith(t, "c1", map[string]int{"m1": 1})

	h.mem.SetFault(func(op, path string) error {
		if op == "update" && strings.HasPrefix(path, "carts/") {
			return store.ErrUnavailable
		}
		return nil
	})

	order, err := h.orders.PlaceOrder(ctx, cart, model.Contact{})
	assert.ErrorIs(t, err, model.ErrDataStoreUnavailable)
	require.NotNil(t, order)

	stored, err := h.orders.GetOrder(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)

	h.mem.SetFault(nil)
	_, err = h.carts.Clear(ctx, cart)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestOrderService_PlaceOrder_KeepsItemsAddedMeanwhile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	placing := h.cartWith(t, "c1", map[string]int{"m1": 1, "m3": 2})

	other, err := h.carts.GetOrCreateCart(ctx, "c1", "b1")
	require.NoError(t, err)
	_, err = h.carts.AddMenuItem(ctx, other, "m2", 1)
	require.NoError(t, err)
	_, err = h.carts.AddMenuItem(ctx, other, "m3", 5)
	require.NoError(t, err)

	order, err := h.orders.PlaceOrder(ctx, placing, model.Contact{Name: "Ann"})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)

	stored, err := h.carts.GetOrCreateCart(ctx, "c1", "b1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"m2": 1, "m3": 5}, itemQuantities(stored))
	assert.Equal(t, itemQuantities(stored), itemQuantities(placing))
}

func TestOrderService_PlaceOrder_PublishFailureIsIgnored(t *testing.T) {
	mem := store.NewMemory()
	logger := zerolog.Nop()
	publisher := &MockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	carts := NewCartService(repository.NewCartRepository(mem, logger), repository.NewMemoryMenuRepository(testMenu()...), logger)
	orders := NewOrderService(repository.NewOrderRepository(mem, logger), carts, publisher, logger)

	cart := model.NewCart("c1", "b1")
	_, err := carts.AddMenuItem(context.Background(), cart, "m1", 1)
	require.NoError(t, err)

	order, err := orders.PlaceOrder(context.Background(), cart, model.Contact{})
	require.NoError(t, err)
	assert.Equal(t, "o001", order.ID)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestOrderService_PlaceOrder_ConcurrentIDsAreUnique(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const n = 25

	carts := make([]*model.Cart, n)
	for i := range carts {
		carts[i] = h.cartWith(t, fmt.Sprintf("c%d", i), map[string]int{"m1": 1})
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(cart *model.Cart) {
			defer wg.Done()
			order, err := h.orders.PlaceOrder(ctx, cart, model.Contact{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[order.ID] = true
			mu.Unlock()
		}(carts[i])
	}
	wg.Wait()

	assert.Len(t, ids, n)
}

func TestOrderService_EmployeeTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1})

	order, err := h.orders.Transition(ctx, employee, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, order.Status)
	for _, line := range order.Items {
		assert.Equal(t, model.StatusConfirmed, line.Status)
	}

	h.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Kind == events.KindTransitioned && e.From == model.StatusPending && e.To == model.StatusConfirmed
	}))
}

func TestOrderService_TransitionRejections(t *testing.T) {
	tests := []struct {
		name      string
		principal model.Principal
		prepare   model.Status
		req       model.TransitionRequest
		wantErr   error
	}{
		{
			name:      "skipping a step",
			principal: employee,
			prepare:   model.StatusPending,
			req:       model.TransitionRequest{From: model.StatusPending, To: model.StatusPreparing},
			wantErr:   model.ErrInvalidTransition,
		},
		{
			name:      "going backwards",
			principal: employee,
			prepare:   model.StatusPreparing,
			req:       model.TransitionRequest{From: model.StatusPreparing, To: model.StatusConfirmed},
			wantErr:   model.ErrInvalidTransition,
		},
		{
			name:      "stale expected state",
			principal: employee,
			prepare:   model.StatusConfirmed,
			req:       model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed},
			wantErr:   model.ErrInvalidTransition,
		},
		{
			name:      "employee cannot start delivery",
			principal: employee,
			prepare:   model.StatusDeliveryPending,
			req:       model.TransitionRequest{From: model.StatusDeliveryPending, To: model.StatusDelivering},
			wantErr:   model.ErrInvalidTransition,
		},
		{
			name:      "other branch",
			principal: outsider,
			prepare:   model.StatusPending,
			req:       model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed},
			wantErr:   model.ErrForbidden,
		},
		{
			name:      "deliveryman uses claim instead",
			principal: deliveryman,
			prepare:   model.StatusDeliveryPending,
			req:       model.TransitionRequest{From: model.StatusDeliveryPending, To: model.StatusDelivering},
			wantErr:   model.ErrForbidden,
		},
		{
			name:      "customer cannot confirm",
			principal: customer,
			prepare:   model.StatusPending,
			req:       model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed},
			wantErr:   model.ErrForbidden,
		},
		{
			name:      "customer cancels too late",
			principal: customer,
			prepare:   model.StatusConfirmed,
			req:       model.TransitionRequest{From: model.StatusConfirmed, To: model.StatusCancelled},
			wantErr:   model.ErrInvalidTransition,
		},
		{
			name:      "unknown line",
			principal: employee,
			prepare:   model.StatusPending,
			req:       model.TransitionRequest{Line: lineNo(7), From: model.StatusPending, To: model.StatusConfirmed},
			wantErr:   model.ErrNotFound,
		},
		{
			name:      "unknown status",
			principal: employee,
			prepare:   model.StatusPending,
			req:       model.TransitionRequest{From: "Baking", To: model.StatusConfirmed},
			wantErr:   model.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			order := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1})
			before := h.advance(t, order.ID, tt.prepare)
			writes := h.mem.Writes()

			_, err := h.orders.Transition(ctx, tt.principal, order.ID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			after, err := h.orders.GetOrder(ctx, admin, order.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, writes, h.mem.Writes(), "rejected transitions are not stored")
		})
	}
}

func TestOrderService_NothingLeavesTerminalStates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1})
	h.advance(t, order.ID, model.StatusDeliveryPending)

	_, err := h.orders.Claim(ctx, deliveryman, order.ID)
	require.NoError(t, err)
	_, err = h.orders.Complete(ctx, deliveryman, order.ID)
	require.NoError(t, err)

	for _, to := range []model.Status{model.StatusPreparing, model.StatusCancelled} {
		_, err := h.orders.Transition(ctx, admin, order.ID, model.TransitionRequest{From: model.StatusCompleted, To: to})
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	}

	cancelled := h.placeOrder(t, map[string]int{"m2": 1})
	_, err = h.orders.Transition(ctx, customer, cancelled.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusCancelled})
	require.NoError(t, err)
	_, err = h.orders.Transition(ctx, employee, cancelled.ID, model.TransitionRequest{From: model.StatusCancelled, To: model.StatusPending})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	final, err := h.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
}

func TestOrderService_BulkTransitionAggregate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1, "m3": 1})
	h.advance(t, order.ID, model.StatusPreparing)

	t.Run("single lines", func(t *testing.T) {
		for n := 1; n <= 3; n++ {
			updated, err := h.orders.Transition(ctx, employee, order.ID, model.TransitionRequest{
				Line: lineNo(n),
				From: model.StatusPreparing,
				To:   model.StatusReadyForPickup,
			})
			require.NoError(t, err)

			if n < 3 {
				assert.Equal(t, model.StatusPreparing, updated.Status, "after %d of 3 lines", n)
			} else {
				assert.Equal(t, model.StatusReadyForPickup, updated.Status)
			}
		}
	})

	t.Run("bulk", func(t *testing.T) {
		other := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1, "m3": 1})
		h.advance(t, other.ID, model.StatusPreparing)

		updated, err := h.orders.Transition(ctx, employee, other.ID, model.TransitionRequest{From: model.StatusPreparing, To: model.StatusReadyForPickup})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReadyForPickup, updated.Status)
		for _, line := range updated.Items {
			assert.Equal(t, model.StatusReadyForPickup, line.Status)
		}
	})
}

func TestOrderService_CancelledLinesAreSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1})

	updated, err := h.orders.Transition(ctx, employee, order.ID, model.TransitionRequest{Line: lineNo(2), From: model.StatusPending, To: model.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, updated.Status)

	updated, err = h.orders.Transition(ctx, employee, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, updated.Status)
	assert.Equal(t, model.StatusCancelled, updated.Line(2).Status)

	updated, err = h.orders.Transition(ctx, admin, order.ID, model.TransitionRequest{From: model.StatusConfirmed, To: model.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)

	h.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Kind == events.KindCancelled && e.Status == model.StatusCancelled
	}))
}

func TestOrderService_CustomerCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1})

	stranger := model.Principal{Role: model.RoleCustomer, ID: "c9"}
	_, err := h.orders.Transition(ctx, stranger, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusCancelled})
	assert.ErrorIs(t, err, model.ErrNotFound)

	updated, err := h.orders.Transition(ctx, customer, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)
}

func TestOrderService_Claim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1, "m2": 1})

	_, err := h.orders.Claim(ctx, deliveryman, order.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "not yet waiting for delivery")

	_, err = h.orders.Claim(ctx, employee, order.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	h.advance(t, order.ID, model.StatusDeliveryPending)

	claimed, err := h.orders.Claim(ctx, deliveryman, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "d1", claimed.AssignedDeliverymanID)
	assert.Equal(t, model.StatusDelivering, claimed.Status)
	for _, line := range claimed.Items {
		assert.Equal(t, model.StatusDelivering, line.Status)
	}

	_, err = h.orders.Claim(ctx, rival, order.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyAssigned)

	_, err = h.orders.Claim(ctx, deliveryman, "o404")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrderService_ConcurrentClaims(t *testing.T) {
	for round := 0; round < 10; round++ {
		h := newHarness(t)
		ctx := context.Background()
		order := h.placeOrder(t, map[string]int{"m1": 1})
		h.advance(t, order.ID, model.StatusDeliveryPending)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make([]error, 2)
		)
		for i, p := range []model.Principal{deliveryman, rival} {
			wg.Add(1)
			go func(i int, p model.Principal) {
				defer wg.Done()
				<-start
				_, errs[i] = h.orders.Claim(ctx, p, order.ID)
			}(i, p)
		}
		close(start)
		wg.Wait()

		successes, assigned := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrAlreadyAssigned):
				assigned++
			default:
				t.Fatalf("unexpected claim error: %v", err)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, assigned)
	}
}

func TestOrderService_Complete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1})
	h.advance(t, order.ID, model.StatusDeliveryPending)

	_, err := h.orders.Claim(ctx, deliveryman, order.ID)
	require.NoError(t, err)

	_, err = h.orders.Complete(ctx, rival, order.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	done, err := h.orders.Complete(ctx, deliveryman, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, model.PaymentPaid, done.PaymentStatus)
	require.NotNil(t, done.DeliveredAt)
	assert.WithinDuration(t, time.Now(), *done.DeliveredAt, time.Minute)

	_, err = h.orders.Complete(ctx, deliveryman, order.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestOrderService_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	waiting := h.placeOrder(t, map[string]int{"m1": 1})
	h.advance(t, waiting.ID, model.StatusDeliveryPending)
	fresh := h.placeOrder(t, map[string]int{"m2": 1})

	tests := []struct {
		name      string
		principal model.Principal
		status    model.Status
		wantIDs   []string
	}{
		{name: "owner", principal: customer, wantIDs: []string{waiting.ID, fresh.ID}},
		{name: "other customer", principal: model.Principal{Role: model.RoleCustomer, ID: "c9"}, wantIDs: []string{}},
		{name: "branch employee", principal: employee, wantIDs: []string{waiting.ID, fresh.ID}},
		{name: "branch employee by status", principal: employee, status: model.StatusPending, wantIDs: []string{fresh.ID}},
		{name: "other branch employee", principal: outsider, wantIDs: []string{}},
		{name: "deliveryman sees open orders", principal: deliveryman, wantIDs: []string{waiting.ID}},
		{name: "admin", principal: admin, wantIDs: []string{waiting.ID, fresh.ID}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			orders, err := h.orders.ListOrders(ctx, tt.principal, model.OrderFilter{Status: tt.status, CustomerID: "ignored"})
			require.NoError(t, err)

			ids := make([]string, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err := h.orders.GetOrder(ctx, outsider, fresh.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.orders.GetOrder(ctx, deliveryman, fresh.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.orders.ListOrders(ctx, model.Principal{Role: "Guest"}, model.OrderFilter{})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestOrderService_StoreUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.placeOrder(t, map[string]int{"m1": 1})

	h.mem.SetFault(func(op, path string) error { return store.ErrUnavailable })

	_, err := h.orders.GetOrder(ctx, customer, order.ID)
	assert.ErrorIs(t, err, model.ErrDataStoreUnavailable)

	_, err = h.orders.Transition(ctx, employee, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed})
	assert.ErrorIs(t, err, model.ErrDataStoreUnavailable)

	_, err = h.orders.ListOrders(ctx, admin, model.OrderFilter{})
	assert.ErrorIs(t, err, model.ErrDataStoreUnavailable)
}

func TestOrderService_WatchOrder(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, map[string]int{"m1": 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := h.orders.WatchOrder(ctx, outsider, order.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	updates, err := h.orders.WatchOrder(ctx, customer, order.ID)
	require.NoError(t, err)

	first := <-updates
	require.NotNil(t, first)
	assert.Equal(t, model.StatusPending, first.Status)

	_, err = h.orders.Transition(context.Background(), employee, order.ID, model.TransitionRequest{From: model.StatusPending, To: model.StatusConfirmed})
	require.NoError(t, err)

	select {
	case next := <-updates:
		require.NotNil(t, next)
		assert.Equal(t, model.StatusConfirmed, next.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for order update")
	}

	cancel()
	for range updates {
	}
}

func TestOrderService_WatchOrder_EndsWhenClaimedByAnother(t *testing.T) {
	h := newHarness(t)
	order := h.placeOrder(t, map[string]int{"m1": 1})
	h.advance(t, order.ID, model.StatusDeliveryPending)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := h.orders.WatchOrder(ctx, rival, order.ID)
	require.NoError(t, err)
	first := <-updates
	assert.Equal(t, model.StatusDeliveryPending, first.Status)

	_, err = h.orders.Claim(context.Background(), deliveryman, order.ID)
	require.NoError(t, err)

	select {
	case next, ok := <-updates:
		assert.False(t, ok, "stream should end, got %v", next)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stream to end")
	}
}
