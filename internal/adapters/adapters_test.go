package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"penjualan/internal/cache"
	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/sheets/memory"
)

type countingStore struct {
	*memory.Store
	fetches  int
	fetchErr error
}

func (c *countingStore) FetchAll(ctx context.Context) ([]core.TransactionRecord, error) {
	c.fetches++
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.Store.FetchAll(ctx)
}

type observer struct{ hits, misses int }

func (o *observer) IncrCacheHit(string)  { o.hits++ }
func (o *observer) IncrCacheMiss(string) { o.misses++ }

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]core.TransactionRecord, bool, error) {
	return nil, false, errors.New("redis down")
}
func (brokenCache) Set(context.Context, string, []core.TransactionRecord) error {
	return errors.New("redis down")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("redis down") }

func rec(id, noPJB string) core.TransactionRecord {
	return core.TransactionRecord{ID: id, NoPJB: noPJB, Units: []core.Unit{{Marking: "M"}}}
}

func TestCachedStore_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New(rec("a", "JKTB0001"))}
	obs := &observer{}
	s := NewCachedStore(inner, cache.NewLRUCache[[]core.TransactionRecord](4, time.Minute), obs).WithLogger(applog.Discard())

	for i := 0; i < 3; i++ {
		got, err := s.FetchAll(ctx)
		if err != nil || len(got) != 1 {
			t.Fatalf("FetchAll() = %v, %v", got, err)
		}
	}
	if inner.fetches != 1 || obs.hits != 2 || obs.misses != 1 {
		t.Errorf("fetches %d, hits %d, misses %d", inner.fetches, obs.hits, obs.misses)
	}

	if _, err := s.Submit(ctx, rec("b", "BDGB0001")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got, _ := s.FetchAll(ctx)
	if len(got) != 2 || inner.fetches != 2 {
		t.Errorf("submit did not invalidate: %d records, %d fetches", len(got), inner.fetches)
	}

	if err := s.DeleteByID(ctx, "a"); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	got, _ = s.FetchAll(ctx)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("delete did not invalidate: %+v", got)
	}
}

func TestCachedStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewCachedStore(memory.New(rec("a", "JKTB0001")), cache.NewLRUCache[[]core.TransactionRecord](4, time.Minute), nil).WithLogger(applog.Discard())

	first, _ := s.FetchAll(ctx)
	first[0].Units[0].Marking = "changed"
	second, _ := s.FetchAll(ctx)
	if second[0].Units[0].Marking != "M" {
		t.Error("callers can mutate the cached list")
	}
}

func TestCachedStore_FailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New(rec("a", "JKTB0001"))}
	s := NewCachedStore(inner, cache.NewLRUCache[[]core.TransactionRecord](4, time.Minute), nil).WithLogger(applog.Discard())

	s.FetchAll(ctx)
	if _, err := s.Submit(ctx, rec("b", "jktb0001")); !core.IsPermanent(err) {
		t.Fatalf("duplicate Submit() error = %v", err)
	}
	s.FetchAll(ctx)
	if inner.fetches != 1 {
		t.Errorf("failed write invalidated the cache (%d fetches)", inner.fetches)
	}
}

func TestCachedStore_BrokenCacheFallsBack(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New(rec("a", "JKTB0001"))}
	s := NewCachedStore(inner, brokenCache{}, nil).WithLogger(applog.Discard())

	got, err := s.FetchAll(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("FetchAll() = %v, %v", got, err)
	}
	if _, err := s.Submit(ctx, rec("b", "BDGB0001")); err != nil {
		t.Errorf("Submit() should ignore cache errors: %v", err)
	}

	inner.fetchErr = core.Transient("fetch all", errors.New("offline"))
	if _, err := s.FetchAll(ctx); !core.IsTransient(err) {
		t.Errorf("store error not propagated: %v", err)
	}
}

type fakeWriter struct {
	created []string
	deleted []string
}

func (f *fakeWriter) CreateRecord(_ context.Context, r core.TransactionRecord) (string, error) {
	f.created = append(f.created, r.ID)
	return r.ID, nil
}

func (f *fakeWriter) DeleteRecord(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeReader struct{ records []core.TransactionRecord }

func (f fakeReader) FetchAll(context.Context) ([]core.TransactionRecord, error) {
	return f.records, nil
}

func (f fakeReader) GetRecord(_ context.Context, id string) (core.TransactionRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return core.TransactionRecord{}, core.ErrRecordNotFound
}

func TestSQLAdapter(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	a := NewSQLAdapter(fakeReader{records: []core.TransactionRecord{rec("a", "JKTB0001")}}, w)

	if id, err := a.Submit(ctx, rec("b", "BDGB0001")); err != nil || id != "b" {
		t.Errorf("Submit() = %q, %v", id, err)
	}
	if err := a.DeleteByID(ctx, "a"); err != nil {
		t.Errorf("DeleteByID() error = %v", err)
	}
	if len(w.created) != 1 || len(w.deleted) != 1 {
		t.Errorf("writes not routed to the service: %+v", w)
	}
	if all, _ := a.FetchAll(ctx); len(all) != 1 {
		t.Errorf("FetchAll() = %v", all)
	}
	if _, err := a.GetRecord(ctx, "zzz"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("GetRecord(missing) error = %v", err)
	}
}
