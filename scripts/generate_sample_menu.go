package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"foodorder/internal/model"

	"github.com/shopspring/decimal"
)

// Writes data/menus/menu.jsonl.gz, the default CATALOG_FILES entry, with a
// small catalogue across two branches:
//
//	b1 sells pizzas, pasta and drinks
//	b2 sells pasta, drinks and desserts
func main() {
	dataDir := "data/menus"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	items := []model.MenuItem{
		{ID: "m1", Name: "Margherita", Category: "pizza", Price: decimal.NewFromInt(500), BranchIDs: []string{"b1"}},
		{ID: "m2", Name: "Diavola", Category: "pizza", Price: decimal.NewFromInt(620), BranchIDs: []string{"b1"}},
		{ID: "m3", Name: "Carbonara", Category: "pasta", Price: decimal.NewFromInt(580), BranchIDs: []string{"b1", "b2"}},
		{ID: "m4", Name: "Lemonade", Category: "drinks", Price: decimal.RequireFromString("12.50"), BranchIDs: []string{"b1", "b2"}},
		{ID: "m5", Name: "Espresso", Category: "drinks", Price: decimal.NewFromInt(90), BranchIDs: []string{"b1", "b2"}},
		{ID: "m6", Name: "Tiramisu", Category: "dessert", Price: decimal.NewFromInt(180), BranchIDs: []string{"b2"}},
	}

	filePath := filepath.Join(dataDir, "menu.jsonl.gz")
	if err := createMenuFile(filePath, items); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d items\n", filePath, len(items))
}

func createMenuFile(filePath string, items []model.MenuItem) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := json.NewEncoder(gzipWriter)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("failed to write item %s: %w", item.ID, err)
		}
	}

	return nil
}
