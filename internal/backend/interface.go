package backend

import (
	"context"
	"time"

	"github.com/privatep88/Petty-Cash/internal/cache"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/services"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is a fully wired period backend.
type BackendResult struct {
	Slot    storage.Slot
	Store   *periods.Store
	Service *services.PeriodService
	// Caches sweeps the service caches; nil when caching is off.
	Caches  *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Slot location
	DataFile     string
	SQLiteDBPath string
	StorageKey   string

	// Event publishing, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	TotalsCacheTTL time.Duration
}

// BackendType names where the period store is persisted.
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
