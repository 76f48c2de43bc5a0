package catalog

import (
	"context"
	"errors"

	"foodorder/internal/config"
	"foodorder/internal/model"

	"github.com/rs/zerolog"
)

// ErrInvalidItem is returned when a menu file contains an item that cannot be imported.
var ErrInvalidItem = errors.New("invalid menu item")

// Loader defines the interface for loading menu files.
type Loader interface {
	// Load reads a gzipped JSON-lines menu file. Each non-blank line holds
	// one menu item.
	Load(ctx context.Context, name string) ([]model.MenuItem, error)
}

// NewLoader builds the loader described by cfg: S3 with a local fallback when
// S3 is enabled, otherwise local files only.
func NewLoader(ctx context.Context, cfg config.CatalogConfig, logger zerolog.Logger) Loader {
	fileLoader := NewFileLoader(cfg.LocalDir, logger)

	if !cfg.S3Enabled {
		logger.Info().Msg("using local file system for menu files (S3 disabled)")
		return fileLoader
	}

	s3Loader, err := NewS3Loader(ctx, cfg.Bucket, cfg.Region, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader
	}

	return NewFallbackLoader(s3Loader, fileLoader, cfg.Prefix, logger)
}
