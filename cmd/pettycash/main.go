package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/privatep88/Petty-Cash/internal/backend"
	"github.com/privatep88/Petty-Cash/internal/cli"
	apphttp "github.com/privatep88/Petty-Cash/internal/http"
	applog "github.com/privatep88/Petty-Cash/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize period backend", err)
	}

	srv := apphttp.NewServer(cfg.Addr(), res.Service, res.Store, logger, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting petty cash server",
			"addr", cfg.Addr(),
			"url", "http://"+cfg.Addr()+"/",
			"backend", cfg.StorageBackend,
			"amqp_enabled", cfg.AMQPEnabled(),
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if res.Caches != nil {
		g.Go(func() error {
			return res.Caches.Run(gctx, backend.CacheSweepInterval(cfg.TotalsCacheTTL))
		})
	}

	runErr := g.Wait()
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup failed", applog.FieldError, err)
	}
	if runErr != nil {
		logger.Error("Server error", applog.FieldError, runErr)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
