// Package worker mirrors saved periods to the report publisher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/privatep88/Petty-Cash/internal/amqp"
	"github.com/privatep88/Petty-Cash/internal/core"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/sheets"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

// ReportWorker reads periods straight from the slot and never writes to it;
// the server process stays the only writer.
type ReportWorker struct {
	slot      storage.Slot
	publisher sheets.ReportPublisher
	logger    *applog.Logger
}

func NewReportWorker(slot storage.Slot, publisher sheets.ReportPublisher, logger *applog.Logger) *ReportWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ReportWorker{
		slot:      slot,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandlePeriodSaved publishes the current content of the announced period.
// A period missing from the store is skipped, since a later message will
// carry it once it is saved.
func (w *ReportWorker) HandlePeriodSaved(ctx context.Context, msg *amqp.PeriodSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing period saved message",
		applog.FieldPeriodKey, msg.Key,
		"timestamp", msg.Timestamp)

	all, err := w.load(ctx)
	if err != nil {
		return err
	}

	p, ok := all[msg.Key]
	if !ok {
		w.logger.WarnContext(ctx, "Period not in store, skipping", applog.FieldPeriodKey, msg.Key)
		return nil
	}
	return w.publish(ctx, msg.Year, msg.Month, p)
}

// PublishAll republishes every stored period. It backs up the event path
// when messages were lost or the publisher was down.
func (w *ReportWorker) PublishAll(ctx context.Context) (int, error) {
	all, err := w.load(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	var errs []error
	for key, p := range all {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		year, month, err := core.SplitKey(key)
		if err != nil {
			w.logger.WarnContext(ctx, "Skipping malformed period key", applog.FieldPeriodKey, key)
			continue
		}
		if err := w.publish(ctx, year, month, p); err != nil {
			errs = append(errs, err)
			continue
		}
		published++
	}

	w.logger.InfoContext(ctx, "Republished stored periods",
		applog.FieldPeriods, len(all),
		"published", published,
		"failed", len(errs))
	return published, errors.Join(errs...)
}

// RunResync calls PublishAll every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (w *ReportWorker) RunResync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.PublishAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic resync failed", applog.FieldError, err)
			}
		}
	}
}

func (w *ReportWorker) load(ctx context.Context) (core.Periods, error) {
	data, err := w.slot.Load(ctx)
	if errors.Is(err, storage.ErrSlotEmpty) {
		return core.Periods{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	all, err := periods.Decode(data)
	if err != nil {
		// Not retryable: the server quarantines the blob on its next start.
		w.logger.ErrorContext(ctx, "Store content unreadable",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpLoad)
		return core.Periods{}, nil
	}
	return all, nil
}

func (w *ReportWorker) publish(ctx context.Context, year, month string, p core.PeriodData) error {
	ref, err := w.publisher.PublishReport(ctx, sheets.BuildReport(year, month, p))
	if err != nil {
		return fmt.Errorf("publish report %s: %w", core.PeriodKey(year, month), err)
	}
	w.logger.InfoContext(ctx, "Report published",
		applog.FieldPeriodKey, core.PeriodKey(year, month),
		applog.FieldEntries, len(p.Entries),
		"ref", ref)
	return nil
}
