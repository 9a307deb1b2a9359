package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemorySlot is a process-local slot, used by tests and throwaway sessions.
type MemorySlot struct {
	mu          sync.Mutex
	data        []byte
	saves       int
	saveErr     error
	quarantined [][]byte
}

var _ Slot = (*MemorySlot)(nil)

// NewMemorySlot returns a slot holding initial; nil means never written.
func NewMemorySlot(initial []byte) *MemorySlot {
	return &MemorySlot{data: clone(initial)}
}

func (s *MemorySlot) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, ErrSlotEmpty
	}
	return clone(s.data), nil
}

func (s *MemorySlot) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = clone(data)
	s.saves++
	return nil
}

func (s *MemorySlot) Quarantine(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantined = append(s.quarantined, clone(data))
	return fmt.Sprintf("mem:quarantine:%d", len(s.quarantined)), nil
}

func (s *MemorySlot) Close() error {
	return nil
}

// FailSaves makes every following Save return err; nil restores normal behaviour.
func (s *MemorySlot) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Saves returns how many successful saves happened.
func (s *MemorySlot) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Quarantined returns copies of every quarantined blob.
func (s *MemorySlot) Quarantined() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.quarantined))
	for i, b := range s.quarantined {
		out[i] = clone(b)
	}
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
