package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"foodorder/internal/model"
)

// memoryMenuRepository keeps the catalogue in process. It backs local runs
// on the memory store, where no PostgreSQL is available.
type memoryMenuRepository struct {
	mu    sync.RWMutex
	items map[string]model.MenuItem
}

// NewMemoryMenuRepository creates an in-memory menu repository seeded with items.
func NewMemoryMenuRepository(items ...model.MenuItem) MenuRepository {
	r := &memoryMenuRepository{items: make(map[string]model.MenuItem)}
	_ = r.Upsert(context.Background(), items)
	return r
}

func (r *memoryMenuRepository) ListByBranch(_ context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]model.MenuItem, 0)
	for _, item := range r.items {
		item := item
		if !item.SoldAt(branchID) {
			continue
		}
		if category != "" && item.Category != category {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Category != matched[j].Category {
			return matched[i].Category < matched[j].Category
		}
		return matched[i].Name < matched[j].Name
	})

	if offset >= len(matched) {
		return []model.MenuItem{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func (r *memoryMenuRepository) GetByID(_ context.Context, id string) (*model.MenuItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *memoryMenuRepository) Upsert(_ context.Context, items []model.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		item.BranchIDs = slices.Clone(item.BranchIDs)
		r.items[item.ID] = item
	}
	return nil
}
