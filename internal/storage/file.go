package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	applog "github.com/privatep88/Petty-Cash/internal/log"
)

// FileSlot keeps the blob in a single JSON file.
type FileSlot struct {
	mu     sync.Mutex
	path   string
	logger *applog.Logger
}

var _ Slot = (*FileSlot)(nil)

func NewFileSlot(path string, logger *applog.Logger) (*FileSlot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &FileSlot{path: path, logger: logger.WithComponent(applog.ComponentStorage)}, nil
}

// Path returns the backing file path.
func (s *FileSlot) Path() string {
	return s.path
}

func (s *FileSlot) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrSlotEmpty
	}
	return data, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the old one, so readers never observe a half-written blob.
func (s *FileSlot) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace slot file: %w", err)
	}

	s.logger.DebugContext(ctx, "Slot file saved", "path", s.path, "bytes", len(data))
	return nil
}

func (s *FileSlot) Quarantine(ctx context.Context, data []byte, reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.WriteFile(ref, data, 0600); err != nil {
		return "", fmt.Errorf("write quarantine file: %w", err)
	}

	s.logger.WarnContext(ctx, "Unreadable slot content quarantined",
		applog.FieldQuarantineRef, ref,
		applog.FieldOperation, applog.OpQuarantine,
		"reason", reason,
		"bytes", len(data))
	return ref, nil
}

func (s *FileSlot) Close() error {
	return nil
}
