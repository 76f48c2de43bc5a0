package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"foodorder/internal/model"
	"foodorder/internal/store"

	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface on the data store.
type orderRepository struct {
	store  store.Store
	logger zerolog.Logger
}

// NewOrderRepository creates a new store-backed order repository.
func NewOrderRepository(s store.Store, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		store:  s,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// NextID allocates the next order id. Counter values are never handed out
// twice, even when the order that claimed one is never written.
func (r *orderRepository) NextID(ctx context.Context) (string, error) {
	seq, err := r.store.Increment(ctx, orderCounter)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to allocate order id")
		return "", fmt.Errorf("failed to allocate order id: %w", err)
	}
	return model.FormatOrderID(seq), nil
}

// Create stores a new order if its id is still free.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	path, err := orderPath(order.ID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	_, err = r.store.Update(ctx, path, func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, ErrOrderExists
		}
		return raw, nil
	})
	if err != nil {
		if !errors.Is(err, ErrOrderExists) {
			r.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to create order")
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID).
		Int("lines", len(order.Items)).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its id.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	path, err := orderPath(id)
	if err != nil {
		return nil, err
	}

	raw, err := r.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Debug().Str("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to read order")
		return nil, fmt.Errorf("failed to read order: %w", err)
	}

	return decodeOrder(raw)
}

// Update applies fn to the stored order and writes the result.
func (r *orderRepository) Update(ctx context.Context, id string, fn func(order *model.Order) error) (*model.Order, error) {
	path, err := orderPath(id)
	if err != nil {
		return nil, err
	}

	var updated *model.Order
	_, err = r.store.Update(ctx, path, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrOrderNotFound
		}
		order, err := decodeOrder(current)
		if err != nil {
			return nil, err
		}
		if err := fn(order); err != nil {
			return nil, err
		}
		updated = order
		return json.Marshal(order)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("order_id", id).
		Str("status", updated.Status.String()).
		Msg("order updated")

	return updated, nil
}

// List retrieves the orders matching filter ordered by id.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	entries, err := r.store.List(ctx, ordersRoot+"/")
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]model.Order, 0, len(entries))
	for _, e := range entries {
		order, err := decodeOrder(e.Value)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", e.Path).Msg("skipping unreadable order")
			continue
		}
		if filter.Matches(order) {
			orders = append(orders, *order)
		}
	}

	return orders, nil
}

// Watch streams the order each time it is written until ctx is cancelled.
func (r *orderRepository) Watch(ctx context.Context, id string) (<-chan *model.Order, error) {
	path, err := orderPath(id)
	if err != nil {
		return nil, err
	}

	events, err := r.store.Subscribe(ctx, path)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to watch order")
		return nil, fmt.Errorf("failed to watch order: %w", err)
	}

	out := make(chan *model.Order)
	go func() {
		defer close(out)
		for ev := range events {
			// The prefix also matches longer ids such as o0010 for o001.
			if ev.Path != path {
				continue
			}
			order, err := decodeOrder(ev.Value)
			if err != nil {
				r.logger.Warn().Err(err).Str("order_id", id).Msg("skipping unreadable order change")
				continue
			}
			select {
			case out <- order:
			case <-ctx.Done():
				// Drain so the store side can shut down.
				for range events {
				}
				return
			}
		}
	}()

	return out, nil
}

func decodeOrder(raw []byte) (*model.Order, error) {
	var order model.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	if order.Items == nil {
		order.Items = []model.OrderLine{}
	}
	return &order, nil
}
