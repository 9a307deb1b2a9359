package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	applog "github.com/privatep88/Petty-Cash/internal/log"
)

const (
	loadSlotSQL = `SELECT value FROM slots WHERE key = ?`

	saveSlotSQL = `
	INSERT INTO slots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	quarantineSQL = `INSERT INTO quarantined_blobs (slot_key, value, reason) VALUES (?, ?, ?)`

	countQuarantinedSQL = `SELECT COUNT(*) FROM quarantined_blobs WHERE slot_key = ?`
)

// SQLiteSlot keeps the blob in a key/value table of a SQLite database.
type SQLiteSlot struct {
	db     *sql.DB
	key    string
	logger *applog.Logger
}

var _ Slot = (*SQLiteSlot)(nil)

func NewSQLiteSlot(dbPath, key string, logger *applog.Logger) (*SQLiteSlot, error) {
	if key == "" {
		return nil, errors.New("slot key cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Info("SQLite slot ready", "db_path", dbPath, "key", key, "schema_version", version)
	return &SQLiteSlot{db: db, key: key, logger: logger}, nil
}

func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, loadSlotSQL, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", s.key, err)
	}
	if value == "" {
		return nil, ErrSlotEmpty
	}
	return []byte(value), nil
}

func (s *SQLiteSlot) Save(ctx context.Context, data []byte) error {
	if _, err := s.db.ExecContext(ctx, saveSlotSQL, s.key, string(data)); err != nil {
		return fmt.Errorf("save slot %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteSlot) Quarantine(ctx context.Context, data []byte, reason string) (string, error) {
	res, err := s.db.ExecContext(ctx, quarantineSQL, s.key, data, reason)
	if err != nil {
		return "", fmt.Errorf("quarantine slot %s: %w", s.key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("quarantine id: %w", err)
	}

	ref := fmt.Sprintf("sqlite:quarantined_blobs:%d", id)
	s.logger.WarnContext(ctx, "Unreadable slot content quarantined",
		applog.FieldQuarantineRef, ref,
		applog.FieldOperation, applog.OpQuarantine,
		"key", s.key,
		"reason", reason)
	return ref, nil
}

// QuarantinedCount returns how many blobs were set aside for this key.
func (s *SQLiteSlot) QuarantinedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countQuarantinedSQL, s.key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count quarantined blobs: %w", err)
	}
	return n, nil
}

func (s *SQLiteSlot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
