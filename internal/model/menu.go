package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem represents a dish in the catalogue.
type MenuItem struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    string          `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageRef    string          `json:"imageRef" db:"image_ref"`
	BranchIDs   []string        `json:"branchIds" db:"branch_ids"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// SoldAt reports whether the item is sold at the given branch.
func (m *MenuItem) SoldAt(branchID string) bool {
	return slices.Contains(m.BranchIDs, branchID)
}
