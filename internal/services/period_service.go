package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/privatep88/Petty-Cash/internal/cache"
	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/export"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/periods"
)

// EventPublisher is notified after a period has been persisted.
type EventPublisher interface {
	PublishPeriodSaved(ctx context.Context, year, month string) error
}

// PeriodView is everything the form shows for one selected period.
type PeriodView struct {
	Year        string          `json:"year"`
	Month       string          `json:"month"`
	Key         string          `json:"key"`
	Saved       bool            `json:"saved"`
	Period      core.PeriodData `json:"period"`
	PeriodTotal decimal.Decimal `json:"periodTotal"`
	YearTotals  core.Totals     `json:"yearTotals"`
}

// PeriodService edits the rows of a period and derives its totals. Every
// mutation goes through the store's atomic Update and is persisted before
// the call returns.
type PeriodService struct {
	store     *periods.Store
	publisher EventPublisher
	totals    cache.Cache[core.Totals]
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// NewPeriodService wires the editor. publisher and totals may be nil.
func NewPeriodService(store *periods.Store, publisher EventPublisher, totals cache.Cache[core.Totals], logger *applog.Logger) *PeriodService {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentEditor)
	return &PeriodService{
		store:     store,
		publisher: publisher,
		totals:    totals,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

// Normalize validates a year and month as received from a request and
// returns the forms used in period keys.
func Normalize(year, month string) (string, string, error) {
	y, err := core.ParseYear(year)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", err, year)
	}
	m, err := core.ParseMonth(month)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", err, month)
	}
	return y, m, nil
}

// Period returns the active period together with its totals.
func (s *PeriodService) Period(ctx context.Context, year, month string) (PeriodView, error) {
	y, m, err := Normalize(year, month)
	if err != nil {
		return PeriodView{}, err
	}
	p := s.store.Get(y, m)
	return PeriodView{
		Year:        y,
		Month:       m,
		Key:         core.PeriodKey(y, m),
		Saved:       s.store.Has(y, m),
		Period:      p,
		PeriodTotal: core.PeriodTotal(p.Entries),
		YearTotals:  s.yearTotals(ctx, y),
	}, nil
}

// UpdateField sets one field of the row with the given id.
func (s *PeriodService) UpdateField(ctx context.Context, year, month, id, field, value string) (core.PeriodData, error) {
	f, err := core.ParseField(field)
	if err != nil {
		return core.PeriodData{}, fmt.Errorf("%w: %q", err, field)
	}
	return s.mutate(ctx, applog.OpUpdateRow, year, month, id, func(p core.PeriodData) (core.PeriodData, error) {
		i := indexOf(p.Entries, id)
		if i < 0 {
			return p, fmt.Errorf("%w: %s", core.ErrEntryNotFound, id)
		}
		updated, err := p.Entries[i].With(f, value)
		if err != nil {
			return p, err
		}
		p.Entries[i] = updated
		return p, nil
	})
}

// AddRow appends a blank row numbered after the last one.
func (s *PeriodService) AddRow(ctx context.Context, year, month string) (core.PeriodData, core.ExpenseEntry, error) {
	var added core.ExpenseEntry
	p, err := s.mutate(ctx, applog.OpAddRow, year, month, "", func(p core.PeriodData) (core.PeriodData, error) {
		added = core.NewBlankEntry(len(p.Entries) + 1)
		p.Entries = append(p.Entries, added)
		return p, nil
	})
	if err != nil {
		return core.PeriodData{}, core.ExpenseEntry{}, err
	}
	return p, added, nil
}

// DeleteRow removes the row with the given id and renumbers the rest 1..N.
func (s *PeriodService) DeleteRow(ctx context.Context, year, month, id string) (core.PeriodData, error) {
	return s.mutate(ctx, applog.OpDeleteRow, year, month, id, func(p core.PeriodData) (core.PeriodData, error) {
		i := indexOf(p.Entries, id)
		if i < 0 {
			return p, fmt.Errorf("%w: %s", core.ErrEntryNotFound, id)
		}
		p.Entries = slices.Delete(p.Entries, i, i+1)
		return p.Reindexed(), nil
	})
}

// SetGeneralNotes replaces the free-text notes of a period.
func (s *PeriodService) SetGeneralNotes(ctx context.Context, year, month, notes string) (core.PeriodData, error) {
	return s.mutate(ctx, applog.OpSetNotes, year, month, "", func(p core.PeriodData) (core.PeriodData, error) {
		p.GeneralNotes = notes
		return p, nil
	})
}

// YearTotals aggregates every saved period of year.
func (s *PeriodService) YearTotals(ctx context.Context, year string) (core.Totals, error) {
	y, err := core.ParseYear(year)
	if err != nil {
		return core.Totals{}, fmt.Errorf("%w: %q", err, year)
	}
	return s.yearTotals(ctx, y), nil
}

// Export writes the period's CSV report to w.
func (s *PeriodService) Export(ctx context.Context, year, month string, w io.Writer) error {
	y, m, err := Normalize(year, month)
	if err != nil {
		return err
	}
	p := s.store.Get(y, m)
	if err := export.WriteCSV(w, p); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write CSV report",
			applog.FieldError, err,
			applog.FieldPeriodKey, core.PeriodKey(y, m),
			applog.FieldOperation, applog.OpExport)
		return fmt.Errorf("write csv: %w", err)
	}
	s.logger.InfoContext(ctx, "CSV report exported",
		applog.FieldPeriodKey, core.PeriodKey(y, m),
		applog.FieldEntries, len(p.Entries))
	return nil
}

// Close releases the publisher when it holds a connection.
func (s *PeriodService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

// yearTotals caches under the store generation the totals were computed
// from, so a result racing with a commit is filed under an outdated key
// and never served.
func (s *PeriodService) yearTotals(ctx context.Context, year string) core.Totals {
	if s.totals != nil {
		if t, ok := s.totals.Get(totalsKey(year, s.store.Generation())); ok {
			return t
		}
	}
	snap, gen := s.store.SnapshotAt()
	t := core.YearTotals(snap, year)
	if s.totals != nil {
		s.totals.Set(totalsKey(year, gen), t)
	}
	s.logger.DebugContext(ctx, "Year totals computed",
		applog.FieldYear, year,
		applog.FieldOperation, applog.OpAggregate,
		"cost", t.Cost.String(),
		"count", t.Count)
	return t
}

func (s *PeriodService) mutate(ctx context.Context, op, year, month, id string, fn func(core.PeriodData) (core.PeriodData, error)) (core.PeriodData, error) {
	y, m, err := Normalize(year, month)
	if err != nil {
		return core.PeriodData{}, err
	}

	p, err := s.store.Update(ctx, y, m, fn)
	if err != nil {
		level := s.logger.WarnContext
		if errors.Is(err, periods.ErrPersist) {
			level = s.logger.ErrorContext
		}
		level(ctx, "Period edit rejected",
			applog.FieldError, err,
			applog.FieldOperation, op,
			applog.FieldPeriodKey, core.PeriodKey(y, m),
			applog.FieldEntryID, id)
		return core.PeriodData{}, err
	}

	if s.totals != nil {
		s.totals.DeletePrefix(totalsPrefix(y))
	}

	s.events.LogPeriodSaved(ctx, op, y, m, id, len(p.Entries))
	s.publish(ctx, y, m)
	return p, nil
}

// publish never fails the edit: the period is already on disk.
func (s *PeriodService) publish(ctx context.Context, year, month string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPeriodSaved(ctx, year, month); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish period saved event",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldPeriodKey, core.PeriodKey(year, month))
	}
}

func indexOf(entries []core.ExpenseEntry, id string) int {
	return slices.IndexFunc(entries, func(e core.ExpenseEntry) bool { return e.ID == id })
}

func totalsPrefix(year string) string {
	return "totals:" + year + ":"
}

func totalsKey(year string, gen uint64) string {
	return totalsPrefix(year) + strconv.FormatUint(gen, 10)
}
