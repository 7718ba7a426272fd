package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"penjualan/internal/adapters"
	"penjualan/internal/amqp"
	"penjualan/internal/cache"
	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/services"
	gsheet "penjualan/internal/sheets/google"
	"penjualan/internal/sheets/memory"
	"penjualan/internal/storage"
)

const (
	defaultCacheTTL      = 30 * time.Second
	listCacheSize        = 4
	cacheCleanupInterval = time.Minute
	redisKeyPrefix       = "penjualan"
)

var _ Factory = (*DefaultFactory)(nil)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *applog.Logger
	observer adapters.CacheObserver
}

// NewFactory creates a new backend factory. observer may be nil.
func NewFactory(logger *applog.Logger, observer adapters.CacheObserver) *DefaultFactory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger:   logger.WithComponent(applog.ComponentBackend),
		observer: observer,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite repository", "db_path", config.SQLiteDBPath)
		return f.sqlBackend(ctx, config, repo)
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres repository")
		return f.sqlBackend(ctx, config, repo)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) sqlBackend(ctx context.Context, config Config, repo *storage.Repository) (*BackendResult, error) {
	repo.WithLogger(f.logger)

	// The broker is optional; records stay pending until a worker syncs them.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", applog.FieldError, err)
		} else {
			amqpClient = client.WithLogger(f.logger)
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	recordService := services.NewRecordService(repo, publisher).WithLogger(f.logger)
	adapter := adapters.NewSQLAdapter(repo, recordService)

	f.logger.Info("Initialized SQL backend",
		applog.FieldBackend, string(config.Type),
		"amqp_enabled", amqpClient != nil)

	store, closeCache, err := f.withCache(ctx, config, adapter)
	if err != nil {
		recordService.Close()
		return nil, err
	}

	return &BackendResult{
		Backend: withFinder(store, adapter),
		Cleanup: func() error {
			return errors.Join(closeCache(), recordService.Close())
		},
		Ready: func(ctx context.Context) error {
			if err := repo.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleCredentialsJSON,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	cli.WithLogger(f.logger)

	if err := cli.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare sheet header: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)

	store, closeCache, err := f.withCache(ctx, config, cli)
	if err != nil {
		return nil, err
	}
	return &BackendResult{
		Backend: store,
		Cleanup: closeCache,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Backend: store}, nil
}

// withCache puts a list cache in front of a slow store: Redis when a URL
// is configured, otherwise an in-process LRU.
func (f *DefaultFactory) withCache(ctx context.Context, config Config, next Backend) (Backend, CleanupFunc, error) {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	if config.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, config.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		rc := cache.NewRedisCache[[]core.TransactionRecord](client, redisKeyPrefix, ttl)
		f.logger.Info("Using Redis list cache", "ttl", ttl)
		return f.cachedStore(next, rc), rc.Close, nil
	}

	lru := cache.NewLRUCache[[]core.TransactionRecord](listCacheSize, ttl)
	manager := cache.NewManager(f.logger)
	manager.Register(lru)
	manager.StartCleanup(cacheCleanupInterval)
	f.logger.Info("Using in-memory list cache", "ttl", ttl)

	return f.cachedStore(next, lru), func() error {
		manager.Stop()
		return nil
	}, nil
}

func (f *DefaultFactory) cachedStore(next Backend, c cache.Cache[[]core.TransactionRecord]) Backend {
	return adapters.NewCachedStore(next, c, f.observer).WithLogger(f.logger)
}

type findableBackend struct {
	Backend
	Finder
}

// withFinder keeps direct record lookups available behind the cache.
func withFinder(b Backend, finder Finder) Backend {
	return findableBackend{Backend: b, Finder: finder}
}
