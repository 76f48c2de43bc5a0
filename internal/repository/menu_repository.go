package repository

import (
	"context"
	"errors"
	"fmt"

	"foodorder/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// menuRepository implements the MenuRepository interface using PostgreSQL.
type menuRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewMenuRepository creates a new PostgreSQL-backed menu repository.
func NewMenuRepository(pool *pgxpool.Pool, logger zerolog.Logger) MenuRepository {
	return &menuRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "menu").Logger(),
	}
}

// ListByBranch retrieves the items sold at a branch with pagination support.
func (r *menuRepository) ListByBranch(ctx context.Context, branchID, category string, limit, offset int) ([]model.MenuItem, error) {
	query := `
		SELECT id, name, category, description, price, image_ref, branch_ids, created_at
		FROM menu_items
		WHERE $1 = ANY(branch_ids)
		  AND ($2 = '' OR category = $2)
		ORDER BY category, name
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, branchID, category, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Str("branch_id", branchID).
			Str("category", category).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query menu items")
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	items := make([]model.MenuItem, 0)
	for rows.Next() {
		var m model.MenuItem
		err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.Description, &m.Price, &m.ImageRef, &m.BranchIDs, &m.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan menu item row")
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating menu item rows")
		return nil, fmt.Errorf("error iterating menu items: %w", err)
	}

	return items, nil
}

// GetByID retrieves a single menu item by its ID.
func (r *menuRepository) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	query := `
		SELECT id, name, category, description, price, image_ref, branch_ids, created_at
		FROM menu_items
		WHERE id = $1
	`

	var m model.MenuItem
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.Category, &m.Description, &m.Price, &m.ImageRef, &m.BranchIDs, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("menu_item_id", id).Msg("menu item not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("menu_item_id", id).Msg("failed to query menu item")
		return nil, fmt.Errorf("failed to query menu item: %w", err)
	}

	return &m, nil
}

// Upsert inserts or replaces menu items in one batch.
func (r *menuRepository) Upsert(ctx context.Context, items []model.MenuItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO menu_items (id, name, category, description, price, image_ref, branch_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image_ref = EXCLUDED.image_ref,
			branch_ids = EXCLUDED.branch_ids
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.Name, item.Category, item.Description, item.Price, item.ImageRef, item.BranchIDs)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("menu_item_id", items[i].ID).
				Msg("failed to upsert menu item")
			return fmt.Errorf("failed to upsert menu item %s: %w", items[i].ID, err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("menu items upserted successfully")

	return nil
}
