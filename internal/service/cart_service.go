package service

import (
	"context"
	"time"

	"foodorder/internal/model"
	"foodorder/internal/repository"

	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo repository.CartRepository
	menuRepo repository.MenuRepository
	logger   zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(cartRepo repository.CartRepository, menuRepo repository.MenuRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo: cartRepo,
		menuRepo: menuRepo,
		logger:   logger.With().Str("service", "cart").Logger(),
	}
}

// GetOrCreateCart returns the stored cart or a fresh, unsaved one.
func (s *cartService) GetOrCreateCart(ctx context.Context, customerID, branchID string) (*model.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, customerID, branchID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("customer_id", customerID).
			Str("branch_id", branchID).
			Msg("failed to load cart")
		return nil, translate(err)
	}

	if cart == nil {
		return model.NewCart(customerID, branchID), nil
	}

	cart.Recalculate()
	return cart, nil
}

// UpsertItem sets the quantity of item in the cart.
func (s *cartService) UpsertItem(ctx context.Context, cart *model.Cart, item model.CartItem) (bool, error) {
	if item.Quantity < 1 {
		return false, model.ErrInvalidQuantity
	}
	if item.MenuItemID == "" {
		return false, model.ErrNotFound.WithMessage("Menu item not found")
	}

	changed, err := s.mutate(ctx, cart, func(next *model.Cart) bool {
		if i := next.Find(item.MenuItemID); i >= 0 {
			if next.Items[i].Quantity == item.Quantity {
				return false
			}
			next.Items[i].Quantity = item.Quantity
			return true
		}
		next.Items = append(next.Items, item)
		return true
	})
	if err != nil {
		return false, err
	}

	if !changed {
		s.logger.Debug().
			Str("cart_id", cart.ID).
			Str("menu_item_id", item.MenuItemID).
			Msg("quantity unchanged, skipping write")
		return false, nil
	}

	s.logger.Debug().
		Str("cart_id", cart.ID).
		Str("menu_item_id", item.MenuItemID).
		Int("quantity", item.Quantity).
		Msg("cart item upserted")

	return true, nil
}

// AddMenuItem resolves the menu item and upserts a snapshot of it.
func (s *cartService) AddMenuItem(ctx context.Context, cart *model.Cart, menuItemID string, quantity int) (bool, error) {
	if quantity < 1 {
		return false, model.ErrInvalidQuantity
	}

	menuItem, err := s.menuRepo.GetByID(ctx, menuItemID)
	if err != nil {
		s.logger.Error().Err(err).Str("menu_item_id", menuItemID).Msg("failed to look up menu item")
		return false, translate(err)
	}
	if menuItem == nil {
		return false, model.ErrNotFound.WithMessage("Menu item not found")
	}
	if !menuItem.SoldAt(cart.BranchID) {
		s.logger.Warn().
			Str("menu_item_id", menuItemID).
			Str("branch_id", cart.BranchID).
			Msg("menu item not sold at branch")
		return false, model.ErrItemNotSoldAtBranch
	}

	return s.UpsertItem(ctx, cart, model.CartItem{
		MenuItemID: menuItem.ID,
		Name:       menuItem.Name,
		Price:      menuItem.Price,
		Quantity:   quantity,
		ImageRef:   menuItem.ImageRef,
	})
}

// RemoveItem drops the menu item from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cart *model.Cart, menuItemID string) (bool, error) {
	changed, err := s.mutate(ctx, cart, func(next *model.Cart) bool {
		i := next.Find(menuItemID)
		if i < 0 {
			return false
		}
		next.Items = append(next.Items[:i], next.Items[i+1:]...)
		return true
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug().
		Str("cart_id", cart.ID).
		Str("menu_item_id", menuItemID).
		Bool("changed", changed).
		Msg("cart item removed")

	return changed, nil
}

// Clear empties the cart.
func (s *cartService) Clear(ctx context.Context, cart *model.Cart) (bool, error) {
	changed, err := s.mutate(ctx, cart, func(next *model.Cart) bool {
		if next.IsEmpty() {
			return false
		}
		next.Items = []model.CartItem{}
		return true
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug().Str("cart_id", cart.ID).Bool("changed", changed).Msg("cart cleared")
	return changed, nil
}

// RemoveOrdered drops the entries that went into an order. An entry whose
// quantity changed since it was ordered, and any entry added meanwhile, stays.
func (s *cartService) RemoveOrdered(ctx context.Context, cart *model.Cart, ordered []model.CartItem) error {
	_, err := s.mutate(ctx, cart, func(next *model.Cart) bool {
		kept := make([]model.CartItem, 0, len(next.Items))
		for _, item := range next.Items {
			if !containsEntry(ordered, item) {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(next.Items) {
			return false
		}
		next.Items = kept
		return true
	})
	return err
}

func containsEntry(items []model.CartItem, entry model.CartItem) bool {
	for _, item := range items {
		if item.MenuItemID == entry.MenuItemID && item.Quantity == entry.Quantity {
			return true
		}
	}
	return false
}

// mutate applies fn to the stored cart inside one store update, recomputing
// totals when fn changes it, and copies the stored result into cart. A
// failed write leaves cart as it was.
func (s *cartService) mutate(ctx context.Context, cart *model.Cart, fn func(next *model.Cart) bool) (bool, error) {
	stored, changed, err := s.cartRepo.Update(ctx, cart.CustomerID, cart.BranchID, func(next *model.Cart) (bool, error) {
		if !fn(next) {
			return false, nil
		}
		next.Recalculate()
		next.UpdatedAt = time.Now().UTC()
		return true, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID).Msg("failed to save cart")
		return false, translate(err)
	}

	stored.Recalculate()
	*cart = *stored
	return changed, nil
}
