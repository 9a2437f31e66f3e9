// Package engine builds the link registry once at startup and hands out the
// services that share it.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-link-registry/config"
	"go-link-registry/expiry"
	"go-link-registry/logging"
	"go-link-registry/services"
	"go-link-registry/storage"
	"go-link-registry/urlgen"
	"go-link-registry/worker"
)

// Engine owns the registry store and the components built on top of it.
type Engine struct {
	Links    services.LinkService
	Resolver *services.Resolver

	store  storage.Storage
	logger *zap.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New connects the configured store and wires the link service, the resolver
// and, when the store supports eviction, the background sweeper.
// A nil cfg uses config.DefaultConfig; a nil logger is built from cfg.LogLevel.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
	}

	clock := expiry.SystemClock
	store, err := openStorage(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("Failed to open storage", zap.String("storage_type", cfg.StorageType), zap.Error(err))
		return nil, err
	}

	links, err := services.NewLinkService(store, urlgen.NewDefault(), cfg, clock, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Links:    links,
		Resolver: services.NewResolver(store, clock, logger),
		store:    store,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	evictor, ok := store.(storage.Evictor)
	if ok && cfg.EvictionInterval > 0 {
		sweeper := worker.NewSweeper(evictor, cfg.EvictionInterval, logger)
		go func() {
			defer close(e.done)
			sweeper.Run(sweepCtx)
		}()
	} else {
		close(e.done)
	}

	logger.Info("Link registry engine started",
		zap.String("storage_type", cfg.StorageType),
		zap.Bool("sweeper", ok && cfg.EvictionInterval > 0),
	)
	return e, nil
}

func openStorage(ctx context.Context, cfg *config.Config, clock expiry.Clock, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StorageMemory:
		return storage.NewInMemoryStorage(cfg.StorageCapacity, clock, logger), nil

	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := storage.NewRedisStorage(rdb, cfg.RedisKeyPrefix, clock, logger)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil

	case config.StoragePostgres:
		pgCfg := storage.DefaultPostgresConfig(cfg.DatabaseDSN)
		db, err := storage.OpenPostgres(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStorage(db, pgCfg.QueryTimeout, clock, logger)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

// Store returns the registry store shared by the engine's components.
func (e *Engine) Store() storage.Storage {
	return e.store
}

// Close stops the sweeper and closes the store. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done
		if closeErr := e.store.Close(); closeErr != nil {
			err = fmt.Errorf("closing storage: %w", closeErr)
		}
		e.logger.Info("Link registry engine stopped")
		_ = e.logger.Sync()
	})
	return err
}
