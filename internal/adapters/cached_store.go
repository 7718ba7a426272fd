package adapters

import (
	"context"

	"penjualan/internal/cache"
	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/sheets"
)

const (
	listCacheName = "records"
	listCacheKey  = "records:all"
)

// CacheObserver receives hit and miss notifications.
type CacheObserver interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// CachedStore memoises FetchAll and drops the cached list after every
// successful write. Cache failures degrade to direct reads.
type CachedStore struct {
	next     sheets.RecordStore
	cache    cache.Cache[[]core.TransactionRecord]
	observer CacheObserver
	logger   *applog.Logger
}

var _ sheets.RecordStore = (*CachedStore)(nil)

func NewCachedStore(next sheets.RecordStore, c cache.Cache[[]core.TransactionRecord], observer CacheObserver) *CachedStore {
	return &CachedStore{
		next:     next,
		cache:    c,
		observer: observer,
		logger:   applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentCache),
	}
}

// WithLogger replaces the store logger.
func (s *CachedStore) WithLogger(l *applog.Logger) *CachedStore {
	s.logger = l.WithComponent(applog.ComponentCache)
	return s
}

func (s *CachedStore) FetchAll(ctx context.Context) ([]core.TransactionRecord, error) {
	cached, ok, err := s.cache.Get(ctx, listCacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Record cache read failed", applog.FieldError, err)
	}
	if ok {
		s.hit()
		return core.CloneRecords(cached), nil
	}
	s.miss()

	records, err := s.next.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, listCacheKey, core.CloneRecords(records)); err != nil {
		s.logger.WarnContext(ctx, "Record cache write failed", applog.FieldError, err)
	}
	return records, nil
}

func (s *CachedStore) Submit(ctx context.Context, r core.TransactionRecord) (string, error) {
	id, err := s.next.Submit(ctx, r)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx)
	return id, nil
}

func (s *CachedStore) DeleteByID(ctx context.Context, id string) error {
	if err := s.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, listCacheKey); err != nil {
		s.logger.WarnContext(ctx, "Record cache invalidation failed", applog.FieldError, err)
	}
}

func (s *CachedStore) hit() {
	if s.observer != nil {
		s.observer.IncrCacheHit(listCacheName)
	}
}

func (s *CachedStore) miss() {
	if s.observer != nil {
		s.observer.IncrCacheMiss(listCacheName)
	}
}
