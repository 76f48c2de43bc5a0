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

// cartRepository implements the CartRepository interface on the data store.
type cartRepository struct {
	store  store.Store
	logger zerolog.Logger
}

// NewCartRepository creates a new store-backed cart repository.
func NewCartRepository(s store.Store, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		store:  s,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// Get retrieves the cart of a customer at a branch.
func (r *cartRepository) Get(ctx context.Context, customerID, branchID string) (*model.Cart, error) {
	path, err := cartPath(customerID, branchID)
	if err != nil {
		return nil, err
	}

	raw, err := r.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("path", path).Msg("failed to read cart")
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("failed to decode cart")
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}

	return &cart, nil
}

// Update applies fn to the stored cart, or to a new empty cart when the
// customer has none there, inside one read-modify-write on the store. fn may
// run more than once. When fn reports no change nothing is written.
func (r *cartRepository) Update(ctx context.Context, customerID, branchID string, fn func(cart *model.Cart) (bool, error)) (*model.Cart, bool, error) {
	path, err := cartPath(customerID, branchID)
	if err != nil {
		return nil, false, err
	}

	var (
		result  *model.Cart
		changed bool
	)
	_, err = r.store.Update(ctx, path, func(current []byte) ([]byte, error) {
		cart := model.NewCart(customerID, branchID)
		if current != nil {
			if err := json.Unmarshal(current, cart); err != nil {
				return nil, fmt.Errorf("failed to decode cart: %w", err)
			}
			if cart.Items == nil {
				cart.Items = []model.CartItem{}
			}
		}

		ok, err := fn(cart)
		if err != nil {
			return nil, err
		}
		result, changed = cart, ok
		if !ok {
			return nil, nil
		}
		return json.Marshal(cart)
	})
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("failed to update cart")
		return nil, false, fmt.Errorf("failed to update cart: %w", err)
	}

	if changed {
		r.logger.Debug().
			Str("cart_id", result.ID).
			Int("items", len(result.Items)).
			Msg("cart saved")
	}

	return result, changed, nil
}
