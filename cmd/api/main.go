package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodorder/internal/catalog"
	"foodorder/internal/config"
	"foodorder/internal/database"
	"foodorder/internal/events"
	"foodorder/internal/handler"
	"foodorder/internal/identity"
	"foodorder/internal/repository"
	"foodorder/internal/router"
	"foodorder/internal/service"
	"foodorder/internal/store"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("store_backend", cfg.Store.Backend).Msg("starting foodorder API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the data store and menu catalogue
	var (
		dataStore store.Store
		menuRepo  repository.MenuRepository
	)

	switch cfg.Store.Backend {
	case "postgres":
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

		pgStore := store.NewPostgres(pool, cfg.Store.UpdateRetries, logger)
		defer pgStore.Close()

		dataStore = pgStore
		menuRepo = repository.NewMenuRepository(pool, logger)

	default:
		dataStore = store.NewMemory()
		menuRepo = repository.NewMemoryMenuRepository()
		seedMenu(ctx, cfg.Catalog, menuRepo, logger)
	}

	// Initialize the order event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbit, err := events.DialRabbit(cfg.RabbitMQ, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		publisher = rabbit
	} else {
		logger.Info().Msg("RabbitMQ disabled, order events will not be published")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Initialize repositories
	cartRepo := repository.NewCartRepository(dataStore, logger)
	orderRepo := repository.NewOrderRepository(dataStore, logger)

	// Initialize services
	menuService := service.NewMenuService(menuRepo, logger)
	cartService := service.NewCartService(cartRepo, menuRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartService, publisher, logger)

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Menu:  handler.NewMenuHandler(menuService, logger),
		Cart:  handler.NewCartHandler(cartService, logger),
		Order: handler.NewOrderHandler(orderService, cartService, logger),
	}

	// Initialize router
	mux := router.New(handlers, identity.NewJWT(cfg.Auth), logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// End open event streams
		cancel()

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// seedMenu fills the in-memory catalogue from the configured menu files.
// A missing or invalid file leaves the menu empty.
func seedMenu(ctx context.Context, cfg config.CatalogConfig, repo repository.MenuRepository, logger zerolog.Logger) {
	importer := catalog.NewImporter(catalog.NewLoader(ctx, cfg, logger), repo, logger)
	if _, err := importer.Import(ctx, cfg.Files); err != nil {
		logger.Warn().Err(err).Msg("failed to seed in-memory menu, starting with an empty catalogue")
	}
}
