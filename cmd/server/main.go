/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the canteen point-of-sale server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the store (SQL stores apply the schema)
  4. Create the canteen service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -driver  sqlite, postgres or memory (DATABASE_DRIVER, default: sqlite)
  -db      SQLite path or PostgreSQL URL (DATABASE_URL, default: cantina.db)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/cantina.db"

  # Run against PostgreSQL
  DATABASE_URL=postgres://cantina@localhost/cantina ./server -driver=postgres

  # Run on the in-process store with demo scenarios enabled
  DEMO_ENABLED=true ./server -driver=memory

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/cantina/api"
	"github.com/warp/cantina/canteen"
	"github.com/warp/cantina/config"
	"github.com/warp/cantina/logger"
	"github.com/warp/cantina/store/memory"
	"github.com/warp/cantina/store/sqlstore"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cantina: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer closeStore()

	svc := canteen.NewService(store, canteen.Options{
		Location:             cfg.Location,
		EnforceCatalogPrices: cfg.EnforceCatalogPrices,
		Logger:               log.Named("canteen"),
	})

	handler := api.NewHandler(svc, api.Options{
		StatusMode:  cfg.StatusMode,
		ActorHeader: cfg.ActorHeader,
		CORSOrigins: cfg.CORSOrigins,
		DemoEnabled: cfg.DemoEnabled,
		Logger:      log.Named("http"),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("driver", cfg.DBDriver),
			zap.String("timezone", cfg.Location.String()),
			zap.String("status_mode", cfg.StatusMode),
			zap.Bool("demo", cfg.DemoEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (canteen.Store, func() error, error) {
	if cfg.DBDriver == "memory" {
		return memory.New(), func() error { return nil }, nil
	}
	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
