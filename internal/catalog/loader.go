package catalog

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"foodorder/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for gzipped menu files on the local file system.
type fileLoader struct {
	dir    string
	logger zerolog.Logger
}

// NewFileLoader creates a loader that resolves names relative to dir.
func NewFileLoader(dir string, logger zerolog.Logger) Loader {
	return &fileLoader{
		dir:    dir,
		logger: logger.With().Str("component", "menu-file-loader").Logger(),
	}
}

// Load reads a gzipped menu file from the local file system.
func (l *fileLoader) Load(ctx context.Context, name string) ([]model.MenuItem, error) {
	path := filepath.Join(l.dir, name)
	l.logger.Info().Str("file", path).Msg("loading menu file")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open menu file")
		return nil, fmt.Errorf("failed to open menu file %s: %w", path, err)
	}
	defer file.Close()

	items, err := readItems(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read menu file")
		return nil, fmt.Errorf("failed to read menu file %s: %w", path, err)
	}

	l.logger.Info().
		Str("file", path).
		Int("items_loaded", len(items)).
		Msg("menu file loaded successfully")

	return items, nil
}

// readItems decodes a gzipped JSON-lines stream of menu items.
func readItems(ctx context.Context, r io.Reader) ([]model.MenuItem, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	items := make([]model.MenuItem, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item model.MenuItem
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
