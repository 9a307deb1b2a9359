package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/privatep88/Petty-Cash/internal/config"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PETTY_CASH_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PETTY_CASH_TEST_VALUE", "")
	os.Unsetenv("PETTY_CASH_TEST_VALUE")

	LoadEnvFile(path)
	if got := os.Getenv("PETTY_CASH_TEST_VALUE"); got != "from-file" {
		t.Fatalf("value = %q", got)
	}

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("PORT", "8081")
	if _, err := LoadAndValidateConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("PORT", "not-a-port")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestOpenSlot(t *testing.T) {
	cfg := &config.Config{StorageBackend: "file", DataFile: filepath.Join(t.TempDir(), "s.json")}
	slot, err := OpenSlot(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer slot.Close()
	if _, err := slot.Load(context.Background()); !errors.Is(err, storage.ErrSlotEmpty) {
		t.Fatalf("expected empty slot, got %v", err)
	}

	if _, err := OpenSlot(&config.Config{StorageBackend: "nope"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewLoggerFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	NewLogger("export", &buf).Debug("hello", "year", "2026")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "export" || rec["year"] != "2026" {
		t.Fatalf("unexpected record: %v", rec)
	}

	t.Setenv("LOG_FORMAT", "")
	buf.Reset()
	NewLogger("export", &buf).Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("component=export")) {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
