// Package cli holds the start-up steps shared by cmd/pettycash,
// cmd/pettycash-worker and cmd/pettycash-export.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/privatep88/Petty-Cash/internal/backend"
	"github.com/privatep88/Petty-Cash/internal/config"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *applog.Logger {
	logger := NewLogger(component, os.Stdout)
	applog.SetDefault(logger)
	return logger
}

// NewLogger builds a logger writing to out, configured from the environment.
func NewLogger(component string, out io.Writer) *applog.Logger {
	return applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: component,
		Output:    out,
		JSON:      strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json"),
	})
}

// LoadEnvFile loads .env (or the given files) for local development.
// A missing file is not an error.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenSlot opens the persistence slot selected by cfg.
func OpenSlot(cfg *config.Config, logger *applog.Logger) (storage.Slot, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	slot, err := backend.OpenSlot(bc, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s slot: %w", bc.Type, err)
	}
	return slot, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
		}
	}()
	return ctx, stop
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}
