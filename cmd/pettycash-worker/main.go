package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/privatep88/Petty-Cash/internal/amqp"
	"github.com/privatep88/Petty-Cash/internal/cli"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/sheets"
	gsheet "github.com/privatep88/Petty-Cash/internal/sheets/google"
	mem "github.com/privatep88/Petty-Cash/internal/sheets/memory"
	"github.com/privatep88/Petty-Cash/internal/storage"
	"github.com/privatep88/Petty-Cash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting pettycash-worker", applog.FieldOperation, applog.OpStartup)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	slot, err := cli.OpenSlot(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to open period store", err)
	}
	defer slot.Close()

	var publisher sheets.ReportPublisher
	if cfg.GoogleSpreadsheetID != "" {
		publisher, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		logger.Info("Google Sheets publisher initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		publisher = mem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, reports are kept in memory only")
	}

	w := worker.NewReportWorker(storage.ReadOnly(slot), publisher, logger)

	// Catch up on anything saved while the worker was down.
	if _, err := w.PublishAll(ctx); err != nil {
		logger.Error("Startup resync failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	running := false

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer client.Close()

		running = true
		g.Go(func() error {
			err := client.ConsumePeriodSaved(gctx, w.HandlePeriodSaved)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP_URL not set, not consuming period events")
	}

	if cfg.ResyncInterval > 0 {
		running = true
		g.Go(func() error {
			return w.RunResync(gctx, cfg.ResyncInterval)
		})
	}

	if !running {
		logger.Info("Nothing left to run after startup resync, exiting")
		return
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		stop()
		os.Exit(1)
	}
	logger.Info("pettycash-worker stopped gracefully")
}
