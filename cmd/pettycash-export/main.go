package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/privatep88/Petty-Cash/internal/cli"
	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/export"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/services"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

func main() {
	var (
		year  string
		month string
		out   string
	)
	flag.StringVar(&year, "year", core.DefaultYear, "Report year")
	flag.StringVar(&month, "month", core.DefaultMonth, "Report month, Arabic name or 1-12")
	flag.StringVar(&out, "out", "", "Output file, - for stdout (default: report file name in the current directory)")
	flag.Parse()

	cli.LoadEnvFile()
	// stdout may carry the report, so logs go to stderr.
	logger := cli.NewLogger(applog.ComponentExport, os.Stderr)

	y, m, err := services.Normalize(year, month)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid period: %v\n", err)
		os.Exit(2)
	}

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

	store, err := periods.Open(ctx, storage.ReadOnly(slot), logger)
	if err != nil {
		cli.Fatal(logger, "Failed to load periods", err)
	}
	svc := services.NewPeriodService(store, nil, nil, logger)

	if out == "" {
		out = export.Filename(y, m)
	}
	if err := writeReport(ctx, svc, y, m, out); err != nil {
		cli.Fatal(logger, "Export failed", err)
	}
	if out != "-" {
		logger.Info("Report written", "file", out, applog.FieldPeriodKey, core.PeriodKey(y, m))
	}
}

func writeReport(ctx context.Context, svc *services.PeriodService, year, month, out string) (err error) {
	var w io.Writer = os.Stdout
	if out != "-" {
		f, cerr := os.Create(out)
		if cerr != nil {
			return fmt.Errorf("create %s: %w", out, cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", out, cerr)
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := svc.Export(ctx, year, month, bw); err != nil {
		return err
	}
	return bw.Flush()
}
