package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/privatep88/Petty-Cash/internal/amqp"
	"github.com/privatep88/Petty-Cash/internal/cache"
	"github.com/privatep88/Petty-Cash/internal/core"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/services"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

const totalsCacheSize = 64

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{logger: logger}
}

// OpenSlot opens the persistence slot named by config. A nil logger
// discards the slot's log output.
func OpenSlot(config Config, logger *applog.Logger) (storage.Slot, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case FileBackend:
		return storage.NewFileSlot(config.DataFile, logger)
	case SQLiteBackend:
		return storage.NewSQLiteSlot(config.SQLiteDBPath, config.StorageKey, logger)
	case MemoryBackend:
		return storage.NewMemorySlot(nil), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateBackend opens the slot, restores the store and wires the period
// service with its optional event publisher and totals cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	log := f.logger.WithComponent(applog.ComponentBackend)

	slot, err := OpenSlot(config, f.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s slot: %w", config.Type, err)
	}

	store, err := periods.Open(ctx, slot, f.logger)
	if err != nil {
		slot.Close()
		return nil, err
	}

	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			log.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			publisher = amqpClient
			log.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var totals cache.Cache[core.Totals]
	var manager *cache.Manager
	if config.TotalsCacheTTL > 0 {
		lru := cache.NewLRUCache[core.Totals](totalsCacheSize, config.TotalsCacheTTL)
		manager = cache.NewManager(f.logger)
		manager.Register(lru)
		totals = lru
	}

	svc := services.NewPeriodService(store, publisher, totals, f.logger)

	log.InfoContext(ctx, "Initialized period backend",
		"type", config.Type.String(),
		"amqp_enabled", publisher != nil,
		"totals_cache_ttl", config.TotalsCacheTTL.String(),
		applog.FieldPeriods, len(store.Keys()))

	return &BackendResult{
		Slot:    slot,
		Store:   store,
		Service: svc,
		Caches:  manager,
		Cleanup: func() error {
			return errors.Join(svc.Close(), slot.Close())
		},
	}, nil
}

// CacheSweepInterval is how often expired totals are dropped.
func CacheSweepInterval(ttl time.Duration) time.Duration {
	return max(ttl, time.Minute)
}
