// Package cli provides common CLI initialization utilities shared by
// cmd/penjualan and cmd/penjualan-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"penjualan/internal/config"
	applog "penjualan/internal/log"
	gsheet "penjualan/internal/sheets/google"
	"penjualan/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger at the given level and makes
// it the slog default. Unknown levels fall back to info.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	if l, err := config.ParseLogLevel(level); err == nil {
		cfg.Level = l
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenRepository opens the SQL repository for the configured backend.
// Only the sqlite and postgres backends keep a local copy of records.
func OpenRepository(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*storage.Repository, error) {
	var (
		repo *storage.Repository
		err  error
	)
	switch cfg.DataBackend {
	case "sqlite":
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	case "postgres":
		repo, err = storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("backend %q has no SQL repository", cfg.DataBackend)
	}
	if err != nil {
		return nil, err
	}
	return repo.WithLogger(logger), nil
}

// SheetsConfig maps the application config onto the Sheets client config.
func SheetsConfig(cfg *config.Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.CredentialsFile(),
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func GracefulShutdown(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
