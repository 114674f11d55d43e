/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the supply engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, optional file, SUPPLY_* environment)
  2. Initialize logger and SQLite store
  3. Load the catalog and quote history, seed the ledger on first run
  4. Pick the ledger lock (Redis when configured, in-process otherwise)
  5. Wire orchestrator, replenisher, scheduler and HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file (.env or .yaml); default: optional ./.env
  -port    HTTP server port, overrides SUPPLY_HTTP_PORT
  -db      SQLite database path, overrides SUPPLY_DB_PATH
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the replenishment scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and Redis connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/supply.db"

  # Seed from a workbook and share the ledger lock across instances
  SUPPLY_CATALOG_FILE=./data/supplies.xlsx SUPPLY_REDIS_URL=redis://localhost:6379/0 ./server

SEE ALSO:
  - config/config.go: All settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/supply-engine/api"
	"github.com/warp/supply-engine/catalog"
	"github.com/warp/supply-engine/config"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/lock"
	"github.com/warp/supply-engine/logger"
	"github.com/warp/supply-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "config file path")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	l := ledger.NewLedger(store)

	seed, err := loadSeed(cfg)
	if err != nil {
		return err
	}
	seeded, err := catalog.SeedLedger(ctx, l, store, store, seed)
	if err != nil {
		return err
	}
	log.Info().
		Bool("seeded", seeded).
		Int("items", len(seed.Items)).
		Int("quotes", len(seed.Quotes)).
		Str("start_date", seed.StartDate.String()).
		Msg("ledger ready")

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Domain services
	pricing := fulfillment.NewEstimator(store, cfg.Pricing())
	orders := fulfillment.NewOrchestrator(l, store, pricing, locker, cfg.Orders(), log)
	replenisher := fulfillment.NewReplenisher(l, store, locker, log)

	scheduler := api.NewReplenishmentScheduler(replenisher, log)
	scheduler.Enabled = cfg.ReplenishEnabled
	scheduler.CheckInterval = cfg.ReplenishInterval
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(orders, replenisher, store, store, log)
	handler.StartDate = cfg.LedgerStart()
	handler.StartingCash = cfg.OpeningCash()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// loadSeed reads the catalog and quote history from the configured files,
// falling back to the generated sample inventory.
func loadSeed(cfg *config.Config) (catalog.Seed, error) {
	seed := catalog.Seed{
		StartDate:    cfg.LedgerStart(),
		StartingCash: cfg.OpeningCash(),
	}

	switch ext := strings.ToLower(filepath.Ext(cfg.CatalogFile)); {
	case cfg.CatalogFile == "":
		seed.Items = catalog.GenerateSampleInventory(catalog.PaperSupplies, cfg.InventoryCoverage, cfg.InventorySeed)
	case ext == ".xlsx":
		f, err := os.Open(cfg.CatalogFile)
		if err != nil {
			return seed, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		if seed.Items, seed.Quotes, err = catalog.LoadWorkbook(f, seed.StartDate); err != nil {
			return seed, fmt.Errorf("load %s: %w", cfg.CatalogFile, err)
		}
	default:
		f, err := os.Open(cfg.CatalogFile)
		if err != nil {
			return seed, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		if seed.Items, err = catalog.LoadItemsCSV(f); err != nil {
			return seed, fmt.Errorf("load %s: %w", cfg.CatalogFile, err)
		}
	}

	if cfg.QuotesFile != "" {
		f, err := os.Open(cfg.QuotesFile)
		if err != nil {
			return seed, fmt.Errorf("open quotes: %w", err)
		}
		defer f.Close()
		quotes, err := catalog.LoadQuotesCSV(f, seed.StartDate)
		if err != nil {
			return seed, fmt.Errorf("load %s: %w", cfg.QuotesFile, err)
		}
		seed.Quotes = append(seed.Quotes, quotes...)
	}
	return seed, nil
}

// newLocker returns a Redis lock when REDIS_URL is set so several server
// processes can share one ledger file.
func newLocker(ctx context.Context, cfg *config.Config, log zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("using in-process ledger lock")
		return lock.NewLocal(), func() {}, nil
	}

	rdb, err := lock.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Str("addr", rdb.Options().Addr).Msg("using redis ledger lock")
	return lock.NewRedis(rdb, lock.RedisOptions{}), func() { rdb.Close() }, nil
}
