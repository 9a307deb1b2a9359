package services

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/privatep88/Petty-Cash/internal/cache"
	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishPeriodSaved(_ context.Context, year, month string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, core.PeriodKey(year, month))
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newService(t *testing.T) (*PeriodService, *storage.MemorySlot, *recordingPublisher) {
	t.Helper()
	slot := storage.NewMemorySlot(nil)
	store, err := periods.Open(context.Background(), slot, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	pub := &recordingPublisher{}
	return NewPeriodService(store, pub, cache.NewLRUCache[core.Totals](8, time.Minute), nil), slot, pub
}

func indices(p core.PeriodData) []int {
	out := make([]int, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Index
	}
	return out
}

func assertContiguous(t *testing.T, p core.PeriodData) {
	t.Helper()
	for i, e := range p.Entries {
		if e.Index != i+1 {
			t.Fatalf("indices not contiguous: %v", indices(p))
		}
	}
}

func TestDefaultView(t *testing.T) {
	svc, _, _ := newService(t)
	v, err := svc.Period(context.Background(), core.DefaultYear, core.DefaultMonth)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if len(v.Period.Entries) != 4 || v.Saved {
		t.Fatalf("unexpected default view: %+v", v)
	}
	assertContiguous(t, v.Period)
	if !v.PeriodTotal.IsZero() || !v.YearTotals.Cost.IsZero() || v.YearTotals.Count != 0 {
		t.Fatalf("default view should have zero totals: %+v", v)
	}
}

func TestAddUpdateDeleteScenario(t *testing.T) {
	ctx := context.Background()
	svc, slot, pub := newService(t)

	start, _ := svc.Period(ctx, "2026", "يناير")
	originalSecond := start.Period.Entries[1].ID

	p, added, err := svc.AddRow(ctx, "2026", "يناير")
	if err != nil {
		t.Fatalf("add row: %v", err)
	}
	if len(p.Entries) != 5 || added.Index != 5 {
		t.Fatalf("expected fifth row, got %d rows, index %d", len(p.Entries), added.Index)
	}

	if _, err := svc.UpdateField(ctx, "2026", "يناير", added.ID, "cost", "150"); err != nil {
		t.Fatalf("update cost: %v", err)
	}

	p, err = svc.DeleteRow(ctx, "2026", "يناير", originalSecond)
	if err != nil {
		t.Fatalf("delete row: %v", err)
	}
	if len(p.Entries) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(p.Entries))
	}
	assertContiguous(t, p)
	for _, e := range p.Entries {
		if e.ID == originalSecond {
			t.Fatalf("deleted row still present")
		}
	}

	totals, err := svc.YearTotals(ctx, "2026")
	if err != nil {
		t.Fatalf("year totals: %v", err)
	}
	if !totals.Cost.Equal(decimal.NewFromInt(150)) || totals.Count != 1 {
		t.Fatalf("unexpected totals: cost %s count %d", totals.Cost, totals.Count)
	}

	if slot.Saves() != 3 || pub.count() != 3 {
		t.Fatalf("expected 3 saves and events, got %d and %d", slot.Saves(), pub.count())
	}
}

func TestUpdateFieldLeavesOtherRows(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	before, _ := svc.Period(ctx, "2026", "مارس")
	target := before.Period.Entries[2].ID

	tests := []struct {
		field string
		value string
		check func(core.ExpenseEntry) bool
	}{
		{"requestNumber", "R-7", func(e core.ExpenseEntry) bool { return e.RequestNumber == "R-7" }},
		{"requestType", "صيانة", func(e core.ExpenseEntry) bool { return e.RequestType == "صيانة" }},
		{"subject", " ورق ", func(e core.ExpenseEntry) bool { return e.Subject == " ورق " }},
		{"executionDate", "2026-03-01", func(e core.ExpenseEntry) bool { return e.ExecutionDate == "2026-03-01" }},
		{"cost", "12,5", func(e core.ExpenseEntry) bool { return e.Cost.String() == "12.5" }},
		{"cost", "abc", func(e core.ExpenseEntry) bool { return e.Cost.IsEmpty() }},
		{"notes", "x", func(e core.ExpenseEntry) bool { return e.Notes == "x" }},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			p, err := svc.UpdateField(ctx, "2026", "مارس", target, tt.field, tt.value)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			for i, e := range p.Entries {
				if i == 2 {
					if !tt.check(e) || e.ID != target || e.Index != 3 {
						t.Fatalf("target row not updated: %+v", e)
					}
					continue
				}
				if !e.Equal(before.Period.Entries[i]) {
					t.Fatalf("row %d changed: %+v", i, e)
				}
			}
		})
	}
}

func TestEditErrors(t *testing.T) {
	ctx := context.Background()
	svc, slot, pub := newService(t)
	v, _ := svc.Period(ctx, "2026", "يناير")
	id := v.Period.Entries[0].ID

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"unknown field", func() error {
			_, err := svc.UpdateField(ctx, "2026", "يناير", id, "amount", "1")
			return err
		}, core.ErrUnknownField},
		{"unknown entry on update", func() error {
			_, err := svc.UpdateField(ctx, "2026", "يناير", "missing", "subject", "x")
			return err
		}, core.ErrEntryNotFound},
		{"unknown entry on delete", func() error {
			_, err := svc.DeleteRow(ctx, "2026", "يناير", "missing")
			return err
		}, core.ErrEntryNotFound},
		{"bad month", func() error {
			_, _, err := svc.AddRow(ctx, "2026", "13")
			return err
		}, core.ErrInvalidMonth},
		{"bad year", func() error {
			_, err := svc.SetGeneralNotes(ctx, "twenty", "يناير", "x")
			return err
		}, core.ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if slot.Saves() != 0 || pub.count() != 0 {
		t.Fatalf("rejected edits must not write or publish")
	}
}

func TestPersistFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	svc, slot, pub := newService(t)
	slot.FailSaves(errors.New("read-only filesystem"))

	if _, err := svc.SetGeneralNotes(ctx, "2026", "يناير", "x"); !errors.Is(err, periods.ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if pub.count() != 0 {
		t.Fatalf("failed persist must not publish")
	}
	v, _ := svc.Period(ctx, "2026", "يناير")
	if v.Period.GeneralNotes != "" || v.Saved {
		t.Fatalf("failed persist must not change the period")
	}
}

func TestPublishFailureDoesNotFailEdit(t *testing.T) {
	ctx := context.Background()
	svc, slot, pub := newService(t)
	pub.err = errors.New("broker down")

	if _, err := svc.SetGeneralNotes(ctx, "2026", "فبراير", "ok"); err != nil {
		t.Fatalf("edit should succeed: %v", err)
	}
	if slot.Saves() != 1 {
		t.Fatalf("expected the edit to be saved")
	}
}

func TestYearTotalsInvalidatedOnEdit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	if tot, _ := svc.YearTotals(ctx, "2026"); !tot.Cost.IsZero() {
		t.Fatalf("expected zero, got %s", tot.Cost)
	}

	v, _ := svc.Period(ctx, "2026", "مايو")
	if _, err := svc.UpdateField(ctx, "2026", "5", v.Period.Entries[0].ID, "cost", "40"); err != nil {
		t.Fatalf("update: %v", err)
	}
	v2, _ := svc.Period(ctx, "2027", "مايو")
	if _, err := svc.UpdateField(ctx, "2027", "مايو", v2.Period.Entries[0].ID, "subject", "x"); err != nil {
		t.Fatalf("update: %v", err)
	}

	tot, _ := svc.YearTotals(ctx, "2026")
	if !tot.Cost.Equal(decimal.NewFromInt(40)) || tot.Count != 1 {
		t.Fatalf("stale totals: %s / %d", tot.Cost, tot.Count)
	}
	tot27, _ := svc.YearTotals(ctx, "2027")
	if !tot27.Cost.IsZero() || tot27.Count != 1 {
		t.Fatalf("2027 totals: %s / %d", tot27.Cost, tot27.Count)
	}
}

func TestConcurrentAddRows(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.AddRow(ctx, "2026", "يوليو"); err != nil {
				t.Errorf("add row: %v", err)
			}
		}()
	}
	wg.Wait()

	v, _ := svc.Period(ctx, "2026", "يوليو")
	if len(v.Period.Entries) != core.InitialRows+20 {
		t.Fatalf("lost updates: %d rows", len(v.Period.Entries))
	}
	assertContiguous(t, v.Period)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	var buf bytes.Buffer
	if err := svc.Export(ctx, "2026", "1", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != core.InitialRows {
		t.Fatalf("expected header plus %d rows, got %d newlines", core.InitialRows, n)
	}
}

func TestCloseWithoutCloser(t *testing.T) {
	svc, _, _ := newService(t)
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestUpdateFieldHugeCostIsCoerced(t *testing.T) {
	ctx := context.Background()
	svc, slot, _ := newService(t)
	v, _ := svc.Period(ctx, "2026", "يناير")
	id := v.Period.Entries[0].ID

	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateField(ctx, "2026", "يناير", id, "cost", "1e999999999")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("update with an exponent cost did not return")
	}

	v, _ = svc.Period(ctx, "2026", "يناير")
	if !v.Period.Entries[0].Cost.IsEmpty() {
		t.Fatalf("expected empty cost, got %q", v.Period.Entries[0].Cost)
	}
	if slot.Saves() != 1 {
		t.Fatalf("expected one save, got %d", slot.Saves())
	}
}

// commitOnSetCache runs commit the first time a result is cached, which
// lands an edit between the totals snapshot and the cache write.
type commitOnSetCache struct {
	cache.Cache[core.Totals]
	once   sync.Once
	commit func()
}

func (c *commitOnSetCache) Set(key string, t core.Totals) {
	c.once.Do(c.commit)
	c.Cache.Set(key, t)
}

func TestYearTotalsNotStaleAfterRacingEdit(t *testing.T) {
	ctx := context.Background()
	store, err := periods.Open(ctx, storage.NewMemorySlot(nil), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	id := store.Get("2026", "يناير").Entries[0].ID

	c := &commitOnSetCache{Cache: cache.NewLRUCache[core.Totals](8, time.Minute)}
	svc := NewPeriodService(store, nil, c, nil)
	c.commit = func() {
		if _, err := svc.UpdateField(ctx, "2026", "يناير", id, "cost", "150"); err != nil {
			t.Errorf("update: %v", err)
		}
	}

	first, _ := svc.YearTotals(ctx, "2026")
	if !first.Cost.IsZero() {
		t.Fatalf("first call reflects the pre-edit snapshot, got %s", first.Cost)
	}
	got, _ := svc.YearTotals(ctx, "2026")
	want := core.YearTotals(store.Snapshot(), "2026")
	if !got.Cost.Equal(want.Cost) || got.Count != want.Count {
		t.Fatalf("cached %s/%d, stored periods give %s/%d", got.Cost, got.Count, want.Cost, want.Count)
	}
	if !got.Cost.Equal(decimal.NewFromInt(150)) || got.Count != 1 {
		t.Fatalf("unexpected totals %s/%d", got.Cost, got.Count)
	}
}

func entryIDs(p core.PeriodData) []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.ID
	}
	return out
}

func TestRandomAddDeleteSequences(t *testing.T) {
	ctx := context.Background()
	for _, seed := range []int64{1, 7, 42, 2026, 99991} {
		rng := rand.New(rand.NewSource(seed))
		svc, _, _ := newService(t)
		v, _ := svc.Period(ctx, "2026", "مارس")
		cur := v.Period

		for step := 0; step < 60; step++ {
			before := entryIDs(cur)
			if len(before) == 0 || rng.Intn(2) == 0 {
				next, entry, err := svc.AddRow(ctx, "2026", "مارس")
				if err != nil {
					t.Fatalf("seed %d step %d: add: %v", seed, step, err)
				}
				if len(next.Entries) != len(before)+1 || entry.Index != len(before)+1 {
					t.Fatalf("seed %d step %d: add gave %d rows, new index %d", seed, step, len(next.Entries), entry.Index)
				}
				if !slices.Equal(entryIDs(next)[:len(before)], before) {
					t.Fatalf("seed %d step %d: add changed existing rows", seed, step)
				}
				assertContiguous(t, next)
				cur = next
				continue
			}

			victim := before[rng.Intn(len(before))]
			next, err := svc.DeleteRow(ctx, "2026", "مارس", victim)
			if err != nil {
				t.Fatalf("seed %d step %d: delete: %v", seed, step, err)
			}
			if len(next.Entries) != len(before)-1 {
				t.Fatalf("seed %d step %d: delete left %d rows, want %d", seed, step, len(next.Entries), len(before)-1)
			}
			want := slices.DeleteFunc(slices.Clone(before), func(id string) bool { return id == victim })
			if !slices.Equal(entryIDs(next), want) {
				t.Fatalf("seed %d step %d: survivors %v, want %v", seed, step, entryIDs(next), want)
			}
			assertContiguous(t, next)
			cur = next
		}
	}
}
