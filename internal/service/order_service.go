package service

import (
	"context"
	"errors"
	"time"

	"foodorder/internal/events"
	"foodorder/internal/model"
	"foodorder/internal/repository"

	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	carts     CartService
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	carts CartService,
	publisher events.Publisher,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		carts:     carts,
		publisher: publisher,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// PlaceOrder turns the cart into a new Pending order and removes the ordered
// entries from the stored cart.
func (s *orderService) PlaceOrder(ctx context.Context, cart *model.Cart, contact model.Contact) (*model.Order, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, model.ErrEmptyCart
	}

	id, err := s.orderRepo.NextID(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID).Msg("failed to allocate order id")
		return nil, model.ErrOrderPersistFailure.Wrap(err)
	}

	order := newOrder(id, cart, contact)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", id).
			Str("cart_id", cart.ID).
			Msg("failed to persist order")
		return nil, model.ErrOrderPersistFailure.Wrap(err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("branch_id", order.BranchID).
		Str("customer_id", order.CustomerID).
		Int("line_count", len(order.Items)).
		Str("total", order.TotalPrice.StringFixed(2)).
		Msg("order placed")

	s.publish(ctx, events.NewEvent(events.KindPlaced, order, model.Principal{Role: model.RoleCustomer, ID: order.CustomerID}))

	if err := s.carts.RemoveOrdered(ctx, cart, orderedItems(order)); err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", order.ID).
			Str("cart_id", cart.ID).
			Msg("order placed but cart could not be cleared")
		return order, err
	}

	return order, nil
}

func orderedItems(order *model.Order) []model.CartItem {
	items := make([]model.CartItem, len(order.Items))
	for i, line := range order.Items {
		items[i] = line.CartItem
	}
	return items
}

func newOrder(id string, cart *model.Cart, contact model.Contact) *model.Order {
	snapshot := cart.Clone()
	snapshot.Recalculate()

	now := time.Now().UTC()
	order := &model.Order{
		ID:            id,
		BranchID:      snapshot.BranchID,
		CustomerID:    snapshot.CustomerID,
		Contact:       contact,
		PaymentStatus: model.PaymentUnpaid,
		TotalPrice:    snapshot.TotalPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         make([]model.OrderLine, len(snapshot.Items)),
	}
	for i, item := range snapshot.Items {
		order.Items[i] = model.OrderLine{
			CartItem: item,
			LineNo:   i + 1,
			Status:   model.StatusPending,
		}
	}
	order.Refresh()
	return order
}

// Transition moves one line, or every non-cancelled line, from req.From to
// req.To. The request is checked against the stored order inside the
// read-modify-write, so a stale From is rejected rather than overwritten.
func (s *orderService) Transition(ctx context.Context, principal model.Principal, orderID string, req model.TransitionRequest) (*model.Order, error) {
	if !req.From.Valid() || !req.To.Valid() {
		return nil, model.ErrInvalidTransition.WithMessage("Unknown order status")
	}
	if principal.Role == model.RoleDeliveryman {
		return nil, model.ErrForbidden
	}

	order, err := s.orderRepo.Update(ctx, orderID, func(o *model.Order) error {
		if err := authorizeTransition(principal, o, req); err != nil {
			return err
		}

		lines, err := targetLines(o, req.Line)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.Status != req.From {
				return model.ErrInvalidTransition.WithMessage("Order line is no longer " + req.From.String())
			}
		}

		for _, line := range lines {
			line.Status = req.To
		}
		o.UpdatedAt = time.Now().UTC()
		o.Refresh()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", orderID).
			Str("role", string(principal.Role)).
			Str("from", req.From.String()).
			Str("to", req.To.String()).
			Msg("transition rejected")
		return nil, translate(err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("actor_id", principal.ID).
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Str("status", order.Status.String()).
		Msg("order transitioned")

	kind := events.KindTransitioned
	if req.To == model.StatusCancelled {
		kind = events.KindCancelled
	}
	event := events.NewEvent(kind, order, principal)
	event.Line = req.Line
	event.From = req.From
	event.To = req.To
	s.publish(ctx, event)

	return order, nil
}

// authorizeTransition checks that the principal may move the order along
// the requested edge.
func authorizeTransition(p model.Principal, o *model.Order, req model.TransitionRequest) error {
	if req.From.Terminal() {
		return model.ErrInvalidTransition.WithMessage("Order line is already " + req.From.String())
	}

	switch p.Role {
	case model.RoleCustomer:
		if o.CustomerID != p.ID {
			return model.ErrNotFound.WithMessage("Order not found")
		}
		if req.To != model.StatusCancelled {
			return model.ErrForbidden
		}
		for _, line := range o.Items {
			if line.Status != model.StatusPending && line.Status != model.StatusCancelled {
				return model.ErrInvalidTransition.WithMessage("Order can no longer be cancelled")
			}
		}
		return nil

	case model.RoleEmployee, model.RoleAdmin:
		if !p.CanManageBranch(o.BranchID) {
			return model.ErrForbidden
		}
		if req.To == model.StatusCancelled {
			return nil
		}
		next, ok := req.From.Next()
		if !ok || next != req.To || req.To.Rank() > model.StatusDeliveryPending.Rank() {
			return model.ErrInvalidTransition
		}
		return nil
	}

	return model.ErrForbidden
}

// targetLines returns the line with the given number, or every
// non-cancelled line when lineNo is nil.
func targetLines(o *model.Order, lineNo *int) ([]*model.OrderLine, error) {
	if lineNo != nil {
		line := o.Line(*lineNo)
		if line == nil {
			return nil, model.ErrNotFound.WithMessage("Order line not found")
		}
		return []*model.OrderLine{line}, nil
	}

	lines := make([]*model.OrderLine, 0, len(o.Items))
	for i := range o.Items {
		if o.Items[i].Status != model.StatusCancelled {
			lines = append(lines, &o.Items[i])
		}
	}
	if len(lines) == 0 {
		return nil, model.ErrInvalidTransition.WithMessage("Order has no open lines")
	}
	return lines, nil
}

// Claim assigns a DeliveryPending order to the calling deliveryman. The
// assignee check runs inside the read-modify-write, so of two concurrent
// claims only one lands.
func (s *orderService) Claim(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error) {
	if principal.Role != model.RoleDeliveryman {
		return nil, model.ErrForbidden
	}

	order, err := s.orderRepo.Update(ctx, orderID, func(o *model.Order) error {
		if !o.Unassigned() {
			return model.ErrAlreadyAssigned
		}
		if o.AggregateStatus() != model.StatusDeliveryPending {
			return model.ErrInvalidTransition.WithMessage("Order is not waiting for delivery")
		}

		o.AssignedDeliverymanID = principal.ID
		for i := range o.Items {
			if o.Items[i].Status != model.StatusCancelled {
				o.Items[i].Status = model.StatusDelivering
			}
		}
		o.UpdatedAt = time.Now().UTC()
		o.Refresh()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", orderID).
			Str("deliveryman_id", principal.ID).
			Msg("claim rejected")
		return nil, translate(err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("deliveryman_id", principal.ID).
		Msg("order claimed")

	s.publish(ctx, events.NewEvent(events.KindClaimed, order, principal))
	return order, nil
}

// Complete marks the claimed order as delivered and paid.
func (s *orderService) Complete(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error) {
	if principal.Role != model.RoleDeliveryman {
		return nil, model.ErrForbidden
	}

	order, err := s.orderRepo.Update(ctx, orderID, func(o *model.Order) error {
		if o.AssignedDeliverymanID != principal.ID {
			return model.ErrForbidden.WithMessage("Order is assigned to another deliveryman")
		}
		if o.AggregateStatus() != model.StatusDelivering {
			return model.ErrInvalidTransition.WithMessage("Order is not being delivered")
		}

		now := time.Now().UTC()
		for i := range o.Items {
			if o.Items[i].Status == model.StatusDelivering {
				o.Items[i].Status = model.StatusCompleted
			}
		}
		o.DeliveredAt = &now
		o.PaymentStatus = model.PaymentPaid
		o.UpdatedAt = now
		o.Refresh()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", orderID).
			Str("deliveryman_id", principal.ID).
			Msg("completion rejected")
		return nil, translate(err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("deliveryman_id", principal.ID).
		Msg("order completed")

	s.publish(ctx, events.NewEvent(events.KindCompleted, order, principal))
	return order, nil
}

// GetOrder retrieves an order visible to the principal. Orders outside the
// principal's scope are reported as not found.
func (s *orderService) GetOrder(ctx context.Context, principal model.Principal, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to get order")
		return nil, translate(err)
	}

	if order == nil || !visibleTo(principal, order) {
		s.logger.Debug().Str("order_id", orderID).Msg("order not found")
		return nil, model.ErrNotFound.WithMessage("Order not found")
	}

	return order, nil
}

// ListOrders retrieves the orders visible to the principal.
func (s *orderService) ListOrders(ctx context.Context, principal model.Principal, filter model.OrderFilter) ([]model.Order, error) {
	scoped, err := scopeFilter(principal, filter.Status)
	if err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.List(ctx, scoped)
	if err != nil {
		s.logger.Error().Err(err).Str("role", string(principal.Role)).Msg("failed to list orders")
		return nil, translate(err)
	}

	s.logger.Debug().
		Str("role", string(principal.Role)).
		Int("count", len(orders)).
		Msg("retrieved orders")

	return orders, nil
}

// scopeFilter builds the listing filter for what the principal may see.
func scopeFilter(p model.Principal, status model.Status) (model.OrderFilter, error) {
	filter := model.OrderFilter{Status: status}
	switch p.Role {
	case model.RoleCustomer:
		filter.CustomerID = p.ID
	case model.RoleEmployee:
		filter.BranchID = p.BranchID
	case model.RoleDeliveryman:
		filter.AvailableForDelivery = true
		filter.AssignedDeliverymanID = p.ID
	case model.RoleAdmin:
	default:
		return model.OrderFilter{}, model.ErrForbidden
	}
	return filter, nil
}

// visibleTo reports whether the principal may read the order.
func visibleTo(p model.Principal, o *model.Order) bool {
	filter, err := scopeFilter(p, "")
	if err != nil {
		return false
	}
	return filter.Matches(o)
}

// WatchOrder streams the current order followed by every later change while
// the order stays visible to the principal.
func (s *orderService) WatchOrder(ctx context.Context, principal model.Principal, orderID string) (<-chan *model.Order, error) {
	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before reading so no change between the two is missed.
	changes, err := s.orderRepo.Watch(ctx, orderID)
	if err != nil {
		cancel()
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to watch order")
		return nil, translate(err)
	}

	current, err := s.GetOrder(ctx, principal, orderID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *model.Order, 1)
	out <- current
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case order, ok := <-changes:
				if !ok {
					return
				}
				// Stop once the order leaves the caller's scope, e.g. claimed by someone else.
				if !visibleTo(principal, order) {
					return
				}
				select {
				case out <- order:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// publish sends the event on a best effort basis. The order is already
// stored, so a bus failure is only logged.
func (s *orderService) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).
			Str("order_id", event.OrderID).
			Str("kind", string(event.Kind)).
			Msg("failed to publish order event")
	}
}
