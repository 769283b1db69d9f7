/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the media budget planning server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, apply flag overrides
  2. Configure zerolog
  3. Initialize SQLite store
  4. Seed builtin and file presets as budget configurations
  5. Create API handler, start the balance auditor
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/budget.db"

  # Human-readable logs, audit every 5 minutes
  ENV=dev AUDIT_INTERVAL=5m ./server

ENVIRONMENT:
  See config/config.go for the full list.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/warp/media-budget/api"
	"github.com/warp/media-budget/budget"
	"github.com/warp/media-budget/config"
	"github.com/warp/media-budget/factory"
	"github.com/warp/media-budget/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	port := flag.Uint("port", uint(cfg.HTTP.Port), "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()
	cfg.HTTP.Port = uint16(*port)
	cfg.DB.Path = *dbPath

	setupLogging(cfg)

	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("failed to create database directory")
		}
	}
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store)
	if err := seedPresets(context.Background(), handler, cfg.Presets); err != nil {
		log.Warn().Err(err).Msg("failed to seed presets")
	}

	handler.Auditor.Interval = cfg.Audit.Interval
	handler.Auditor.Enabled = cfg.Audit.Enabled
	handler.Auditor.Start()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(handler, cfg.HTTP.CORSOrigins),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("db", cfg.DB.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	handler.Auditor.Stop()

	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.SetGlobalLevel(cfg.Log.ZerologLevel())
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Log.Human() || cfg.Dev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// seedPresets stores the builtin shapes and the TOML preset file. Presets
// never overwrite a configuration that already exists.
func seedPresets(ctx context.Context, h *api.Handler, p config.Presets) error {
	var presets []budget.BudgetConfiguration
	if p.Builtin {
		presets = append(presets, factory.BuiltinPresets()...)
	}
	fromFile, err := h.Configs.LoadPresets(p.Path)
	if err != nil {
		return err
	}
	presets = append(presets, fromFile...)

	added, err := h.SeedConfigurations(ctx, presets)
	if err != nil {
		return err
	}
	log.Info().Int("added", added).Int("presets", len(presets)).Str("file", p.Path).Msg("presets seeded")
	return nil
}
