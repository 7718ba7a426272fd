package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	repo.WithLogger(applog.Discard())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(id, noPJB string) core.TransactionRecord {
	return core.TransactionRecord{
		ID:                     id,
		TimeStamp:              time.Date(2024, 1, 15, 10, 30, 0, 123000000, time.UTC),
		Date:                   core.NewDate(2024, 1, 15),
		Month:                  "January 2024",
		NoPJB:                  noPJB,
		Branch:                 core.DeriveBranch(noPJB),
		CustomerName:           "PT. ABC Manufacturing",
		CustomerClassification: core.Business,
		Quantity:               2,
		ProductType:            "Engine Type A",
		Product:                "Engine Model X1",
		Mark:                   "Mark-A1",
		HPP:                    core.Money{Cents: 5000000050},
		PaymentScheme:          "Credit 30 Days",
		SalesRepresentative:    "John Doe",
		Units: []core.Unit{
			{Marking: "MRK001", SerialNumber: "SN001234", SNEngine: "ENG001234"},
			{Marking: "MRK002", SerialNumber: "SN001235"},
		},
	}
}

func TestRepository_SubmitFetchRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testRecord("rec-1", "JKTB001234")
	id, err := repo.Submit(ctx, want)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id != "rec-1" {
		t.Errorf("Submit() id = %q", id)
	}

	got, err := repo.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FetchAll() returned %d records", len(got))
	}
	if !got[0].TimeStamp.Equal(want.TimeStamp) {
		t.Errorf("time stamp = %v, want %v", got[0].TimeStamp, want.TimeStamp)
	}
	got[0].TimeStamp = want.TimeStamp
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("round trip mismatch\ngot:  %+v\nwant: %+v", got[0], want)
	}
}

func TestRepository_FetchAllEmptyAndOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.FetchAll(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("FetchAll() on empty db = %v, %v", got, err)
	}

	for _, r := range []core.TransactionRecord{
		testRecord("b", "BDGB000001"),
		testRecord("a", "JKTB000001"),
		testRecord("c", "SBYB000001"),
	} {
		if _, err := repo.Submit(ctx, r); err != nil {
			t.Fatalf("Submit(%s) error = %v", r.ID, err)
		}
	}
	got, _ = repo.FetchAll(ctx)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"b", "a", "c"}) {
		t.Errorf("FetchAll() order = %v, want submission order", ids)
	}
}

func TestRepository_SubmitAssignsID(t *testing.T) {
	repo := newTestRepo(t)
	id, err := repo.Submit(context.Background(), testRecord("", "JKTB001234"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(id) != 36 {
		t.Errorf("generated id = %q", id)
	}
}

func TestRepository_DuplicatesArePermanent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.Submit(ctx, testRecord("rec-1", "JKTB001234")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	tests := []struct {
		name string
		rec  core.TransactionRecord
	}{
		{"same id", testRecord("rec-1", "BDGB000001")},
		{"same no pjb other case", testRecord("rec-2", "jktb001234")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Submit(ctx, tt.rec)
			if !core.IsPermanent(err) {
				t.Fatalf("Submit() error = %v, want permanent", err)
			}
			if !errors.Is(err, core.ErrDuplicateRecord) {
				t.Errorf("error should wrap ErrDuplicateRecord: %v", err)
			}
		})
	}

	all, _ := repo.FetchAll(ctx)
	if len(all) != 1 || len(all[0].Units) != 2 {
		t.Errorf("failed submissions left partial data: %+v", all)
	}
}

func TestRepository_DeleteByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	repo.Submit(ctx, testRecord("rec-1", "JKTB001234"))
	repo.Submit(ctx, testRecord("rec-2", "BDGB005678"))

	if err := repo.DeleteByID(ctx, "rec-1"); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if err := repo.DeleteByID(ctx, "missing"); err != nil {
		t.Errorf("DeleteByID(missing) error = %v", err)
	}

	all, _ := repo.FetchAll(ctx)
	if len(all) != 1 || all[0].ID != "rec-2" {
		t.Errorf("after delete: %+v", all)
	}
	if _, err := repo.GetRecord(ctx, "rec-1"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("GetRecord(deleted) error = %v", err)
	}

	// The No. PJB is free again once its record is gone.
	if _, err := repo.Submit(ctx, testRecord("rec-3", "JKTB001234")); err != nil {
		t.Errorf("resubmitting a deleted No. PJB failed: %v", err)
	}
}

func TestRepository_GetRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	rec := testRecord("rec-1", "JKTB001234")
	repo.Submit(ctx, rec)

	got, err := repo.GetRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got.NoPJB != rec.NoPJB || got.HPP != rec.HPP || !reflect.DeepEqual(got.Units, rec.Units) {
		t.Errorf("GetRecord() = %+v", got)
	}
}

func TestRepository_SyncTracking(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, r := range []core.TransactionRecord{
		testRecord("rec-1", "JKTB000001"),
		testRecord("rec-2", "JKTB000002"),
		testRecord("rec-3", "JKTB000003"),
	} {
		repo.Submit(ctx, r)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || !reflect.DeepEqual(pending, []string{"rec-1", "rec-2", "rec-3"}) {
		t.Fatalf("PendingSync() = %v, %v", pending, err)
	}

	if err := repo.MarkSynced(ctx, "rec-1"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := repo.MarkSyncError(ctx, "rec-2"); err != nil {
		t.Fatalf("MarkSyncError() error = %v", err)
	}

	pending, _ = repo.PendingSync(ctx, 10)
	if !reflect.DeepEqual(pending, []string{"rec-2", "rec-3"}) {
		t.Errorf("PendingSync() after marks = %v", pending)
	}
	pending, _ = repo.PendingSync(ctx, 1)
	if len(pending) != 1 {
		t.Errorf("PendingSync(limit 1) = %v", pending)
	}

	status, err := repo.SyncStatus(ctx, "rec-1")
	if err != nil || status != SyncSynced {
		t.Errorf("SyncStatus(rec-1) = %q, %v", status, err)
	}
	if _, err := repo.SyncStatus(ctx, "missing"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("SyncStatus(missing) error = %v", err)
	}
}

func TestRepository_CancelledContextIsTransient(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.Submit(ctx, testRecord("rec-1", "JKTB001234")); !core.IsTransient(err) {
		t.Errorf("Submit(cancelled) error = %v, want transient", err)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(SQLite, path); err != nil {
			t.Fatalf("RunMigrations() pass %d error = %v", i+1, err)
		}
	}
	if err := RunMigrations(Dialect("oracle"), path); err == nil {
		t.Error("unknown dialect should fail")
	}
}
