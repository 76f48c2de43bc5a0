package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"foodorder/internal/catalog"
	"foodorder/internal/config"
	"foodorder/internal/database"
	"foodorder/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dryRun := flag.Bool("dry-run", false, "validate the menu files without writing to the database")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-dry-run] [file ...]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Imports gzipped JSON-lines menu files. Defaults to CATALOG_FILES.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)

	files := cfg.Catalog.Files
	if flag.NArg() > 0 {
		files = flag.Args()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := catalog.NewLoader(ctx, cfg.Catalog, logger)

	if *dryRun {
		importer := catalog.NewImporter(loader, repository.NewMemoryMenuRepository(), logger)
		count, err := importer.Import(ctx, files)
		if err != nil {
			return fmt.Errorf("menu files are invalid: %w", err)
		}
		logger.Info().Int("items", count).Msg("dry run complete, menu files are valid")
		return nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	importer := catalog.NewImporter(loader, repository.NewMenuRepository(pool, logger), logger)
	count, err := importer.Import(ctx, files)
	if err != nil {
		return fmt.Errorf("failed to import menu: %w", err)
	}

	logger.Info().Int("items", count).Strs("files", files).Msg("menu import completed")
	return nil
}
