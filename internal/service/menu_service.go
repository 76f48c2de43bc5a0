package service

import (
	"context"
	"fmt"

	"foodorder/internal/model"
	"foodorder/internal/repository"

	"github.com/rs/zerolog"
)

// menuService implements MenuService.
type menuService struct {
	menuRepo repository.MenuRepository
	logger   zerolog.Logger
}

// NewMenuService creates a new menu service.
func NewMenuService(menuRepo repository.MenuRepository, logger zerolog.Logger) MenuService {
	return &menuService{
		menuRepo: menuRepo,
		logger:   logger.With().Str("service", "menu").Logger(),
	}
}

// ListByBranch retrieves the items sold at a branch with pagination.
func (s *menuService) ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.menuRepo.ListByBranch(ctx, branchID, category, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Str("branch_id", branchID).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list menu")
		return nil, fmt.Errorf("failed to list menu: %w", err)
	}

	s.logger.Debug().
		Str("branch_id", branchID).
		Int("count", len(items)).
		Msg("retrieved menu")

	return items, nil
}

// GetByID retrieves a single menu item by ID.
func (s *menuService) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	if id == "" {
		return nil, model.ErrNotFound.WithMessage("Menu item not found")
	}

	item, err := s.menuRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("menu_item_id", id).Msg("failed to get menu item")
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}

	if item == nil {
		s.logger.Debug().Str("menu_item_id", id).Msg("menu item not found")
		return nil, model.ErrNotFound.WithMessage("Menu item not found")
	}

	return item, nil
}
