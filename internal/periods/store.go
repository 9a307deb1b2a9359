// Package periods holds the period store: every month's expense rows keyed
// by "<year>-<month>", restored once from a storage slot and written back in
// full after every change.
package periods

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/privatep88/Petty-Cash/internal/core"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

// ErrPersist wraps failures to write the store back to its slot.
var ErrPersist = errors.New("persist period store")

// LoadStatus describes how the store came up.
type LoadStatus struct {
	Loaded        bool      `json:"loaded"`
	LoadedAt      time.Time `json:"loadedAt"`
	Periods       int       `json:"periods"`
	Discarded     bool      `json:"discarded"`
	DecodeError   string    `json:"decodeError,omitempty"`
	QuarantineRef string    `json:"quarantineRef,omitempty"`
}

type Store struct {
	mu      sync.Mutex
	slot    storage.Slot
	logger  *applog.Logger
	periods core.Periods
	// drafts hold default periods that were viewed but never saved, so
	// repeated reads return the same entry ids.
	drafts map[string]core.PeriodData
	status LoadStatus
	// gen counts successful commits.
	gen uint64
}

// Open restores the store from slot. An unreadable blob is quarantined,
// logged and replaced by an empty store; only slot read failures are
// returned as errors.
func Open(ctx context.Context, slot storage.Slot, logger *applog.Logger) (*Store, error) {
	if slot == nil {
		return nil, errors.New("period store needs a slot")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Store{
		slot:    slot,
		logger:  logger.WithComponent(applog.ComponentStore),
		periods: core.Periods{},
		drafts:  map[string]core.PeriodData{},
	}

	data, err := slot.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrSlotEmpty):
		s.logger.InfoContext(ctx, "No saved periods, starting empty")
	case err != nil:
		return nil, fmt.Errorf("load period store: %w", err)
	default:
		periods, derr := Decode(data)
		if derr != nil {
			s.discard(ctx, data, derr)
		} else {
			s.periods = periods
		}
	}

	s.status.Loaded = true
	s.status.LoadedAt = time.Now()
	s.status.Periods = len(s.periods)
	s.logger.InfoContext(ctx, "Period store loaded",
		applog.FieldPeriods, len(s.periods),
		"discarded", s.status.Discarded)
	return s, nil
}

func (s *Store) discard(ctx context.Context, data []byte, cause error) {
	s.status.Discarded = true
	s.status.DecodeError = cause.Error()
	s.logger.ErrorContext(ctx, "Failed to load data, starting with an empty store",
		applog.FieldError, cause,
		applog.FieldOperation, applog.OpLoad,
		"bytes", len(data))

	ref, err := s.slot.Quarantine(ctx, data, cause.Error())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to quarantine unreadable store",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpQuarantine)
		return
	}
	s.status.QuarantineRef = ref
}

// Get returns the period for year and month. A period that was never saved
// comes back as the default blank one; it is not persisted.
func (s *Store) Get(year, month string) core.PeriodData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(core.PeriodKey(year, month)).Clone()
}

// Has reports whether the period has been saved at least once.
func (s *Store) Has(year, month string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.periods[core.PeriodKey(year, month)]
	return ok
}

// Set replaces the period wholesale and persists the whole store.
func (s *Store) Set(ctx context.Context, year, month string, data core.PeriodData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, core.PeriodKey(year, month), data)
}

// Update runs fn on a copy of the current period and stores its result,
// holding the store lock for the whole read-modify-write. If fn fails
// nothing is written.
func (s *Store) Update(ctx context.Context, year, month string, fn func(core.PeriodData) (core.PeriodData, error)) (core.PeriodData, error) {
	key := core.PeriodKey(year, month)

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.currentLocked(key).Clone())
	if err != nil {
		return core.PeriodData{}, err
	}
	if err := s.commitLocked(ctx, key, next); err != nil {
		return core.PeriodData{}, err
	}
	return next.Clone(), nil
}

// Snapshot returns a deep copy of every saved period.
func (s *Store) Snapshot() core.Periods {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods.Clone()
}

// Generation returns a counter that changes on every successful commit.
// Values derived from a snapshot stay valid while it is unchanged.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SnapshotAt returns Snapshot together with the generation it reflects.
func (s *Store) SnapshotAt() (core.Periods, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods.Clone(), s.gen
}

// Keys returns the saved period keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.periods))
	for k := range s.periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadStatus reports the outcome of Open.
func (s *Store) LoadStatus() LoadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Loaded reports whether the initial restore has finished.
func (s *Store) Loaded() bool {
	return s.LoadStatus().Loaded
}

func (s *Store) currentLocked(key string) core.PeriodData {
	if p, ok := s.periods[key]; ok {
		return p
	}
	if d, ok := s.drafts[key]; ok {
		return d
	}
	d := core.DefaultPeriod()
	s.drafts[key] = d
	return d
}

// commitLocked swaps in the new period and saves. On a failed save the
// previous in-memory state is restored so memory never runs ahead of disk.
func (s *Store) commitLocked(ctx context.Context, key string, data core.PeriodData) error {
	prev, had := s.periods[key]
	s.periods[key] = data.Clone()

	blob, err := Encode(s.periods)
	if err == nil {
		err = s.slot.Save(ctx, blob)
	}
	if err != nil {
		if had {
			s.periods[key] = prev
		} else {
			delete(s.periods, key)
		}
		s.logger.ErrorContext(ctx, "Failed to persist period store",
			applog.FieldError, err,
			applog.FieldPeriodKey, key,
			applog.FieldOperation, applog.OpPersist)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	delete(s.drafts, key)
	s.gen++
	s.logger.DebugContext(ctx, "Period store persisted",
		applog.FieldPeriodKey, key,
		applog.FieldPeriods, len(s.periods),
		"bytes", len(blob))
	return nil
}

// Encode serializes the whole mapping as one JSON object.
func Encode(periods core.Periods) ([]byte, error) {
	if periods == nil {
		periods = core.Periods{}
	}
	return json.Marshal(periods)
}

// Decode parses a serialized mapping. A JSON null decodes as empty.
func Decode(data []byte) (core.Periods, error) {
	var periods core.Periods
	if err := json.Unmarshal(data, &periods); err != nil {
		return nil, fmt.Errorf("decode period store: %w", err)
	}
	if periods == nil {
		periods = core.Periods{}
	}
	for k, p := range periods {
		periods[k] = p.Clone()
	}
	return periods, nil
}
