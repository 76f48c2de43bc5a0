package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"foodorder/internal/model"
	"foodorder/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Prices are stored as NUMERIC(10, 2).
const priceScale = 2

var maxPrice = decimal.New(1, 8)

// Importer loads menu files and upserts their items into a MenuRepository.
type Importer struct {
	loader Loader
	repo   repository.MenuRepository
	logger zerolog.Logger
}

// NewImporter creates a new menu importer.
func NewImporter(loader Loader, repo repository.MenuRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		loader: loader,
		repo:   repo,
		logger: logger.With().Str("component", "menu-importer").Logger(),
	}
}

// Load reads all files concurrently. When the same id appears in several
// files the one listed last wins.
func (i *Importer) Load(ctx context.Context, names []string) ([]model.MenuItem, error) {
	type loadResult struct {
		index int
		items []model.MenuItem
		err   error
	}

	resultChan := make(chan loadResult, len(names))
	var wg sync.WaitGroup

	for index, name := range names {
		index, name := index, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := i.loader.Load(ctx, name)
			resultChan <- loadResult{index: index, items: items, err: err}
		}()
	}

	wg.Wait()
	close(resultChan)

	perFile := make([][]model.MenuItem, len(names))
	var errs []error
	for result := range resultChan {
		if result.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[result.index], result.err))
			continue
		}
		perFile[result.index] = result.items
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	position := make(map[string]int)
	merged := make([]model.MenuItem, 0)
	for _, items := range perFile {
		for _, item := range items {
			if pos, ok := position[item.ID]; ok {
				merged[pos] = item
				continue
			}
			position[item.ID] = len(merged)
			merged = append(merged, item)
		}
	}

	return merged, nil
}

// Import loads, validates and upserts every item in names. Nothing is written
// when any item is invalid.
func (i *Importer) Import(ctx context.Context, names []string) (int, error) {
	items, err := i.Load(ctx, names)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, item := range items {
		if err := Validate(item); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		i.logger.Error().Int("invalid_items", len(errs)).Msg("menu import rejected")
		return 0, errors.Join(errs...)
	}

	if len(items) == 0 {
		i.logger.Warn().Strs("files", names).Msg("menu files contain no items")
		return 0, nil
	}

	if err := i.repo.Upsert(ctx, items); err != nil {
		return 0, fmt.Errorf("failed to upsert menu items: %w", err)
	}

	i.logger.Info().
		Strs("files", names).
		Int("items_imported", len(items)).
		Msg("menu imported")

	return len(items), nil
}

// Validate checks the fields a menu item needs before it can be sold. Prices
// must fit the stored precision exactly.
func Validate(item model.MenuItem) error {
	switch {
	case item.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	case item.Name == "":
		return fmt.Errorf("%w: item %s: name is required", ErrInvalidItem, item.ID)
	case item.Price.IsNegative():
		return fmt.Errorf("%w: item %s: price must not be negative", ErrInvalidItem, item.ID)
	case !item.Price.Equal(item.Price.Round(priceScale)):
		return fmt.Errorf("%w: item %s: price %s has more than %d decimal places", ErrInvalidItem, item.ID, item.Price, priceScale)
	case item.Price.GreaterThanOrEqual(maxPrice):
		return fmt.Errorf("%w: item %s: price %s is too large", ErrInvalidItem, item.ID, item.Price)
	case len(item.BranchIDs) == 0:
		return fmt.Errorf("%w: item %s: at least one branch is required", ErrInvalidItem, item.ID)
	}
	for _, branch := range item.BranchIDs {
		if branch == "" {
			return fmt.Errorf("%w: item %s: branch id must not be empty", ErrInvalidItem, item.ID)
		}
	}
	return nil
}
