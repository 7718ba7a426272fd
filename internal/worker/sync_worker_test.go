package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/sheets/memory"
	"penjualan/internal/storage"
)

type flakyRemote struct {
	*memory.Store
	submitErr error
	deleteErr error
}

func (f *flakyRemote) Submit(ctx context.Context, r core.TransactionRecord) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.Store.Submit(ctx, r)
}

func (f *flakyRemote) DeleteByID(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteByID(ctx, id)
}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) record(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, s)
}

func (o *outcomes) count(s string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, v := range o.seen {
		if v == s {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*storage.Repository, *flakyRemote, *SyncWorker, *outcomes) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	repo.WithLogger(applog.Discard())
	t.Cleanup(func() { repo.Close() })

	remote := &flakyRemote{Store: memory.New()}
	obs := &outcomes{}
	w := NewSyncWorker(repo, remote, 2).WithLogger(applog.Discard()).WithObserver(obs.record)
	return repo, remote, w, obs
}

func record(id, noPJB string) core.TransactionRecord {
	return core.TransactionRecord{
		ID:                     id,
		TimeStamp:              time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Date:                   core.NewDate(2024, 1, 15),
		Month:                  "January 2024",
		NoPJB:                  noPJB,
		Branch:                 core.DeriveBranch(noPJB),
		CustomerName:           "PT. ABC Manufacturing",
		CustomerClassification: core.Business,
		Quantity:               1,
		ProductType:            "Engine Type A",
		Product:                "Engine Model X1",
		Mark:                   "Mark-A1",
		HPP:                    core.FromRupiah(50000000),
		PaymentScheme:          "Cash",
		SalesRepresentative:    "John Doe",
		Units:                  []core.Unit{{Marking: "MRK001"}},
	}
}

func remoteIDs(t *testing.T, r *flakyRemote) []string {
	t.Helper()
	all, _ := r.Store.FetchAll(context.Background())
	ids := make([]string, len(all))
	for i, rec := range all {
		ids[i] = rec.ID
	}
	return ids
}

func TestHandleSyncMessage(t *testing.T) {
	repo, remote, w, obs := setup(t)
	ctx := context.Background()
	repo.Submit(ctx, record("rec-1", "JKTB000001"))

	if err := w.HandleSyncMessage(ctx, "rec-1"); err != nil {
		t.Fatalf("HandleSyncMessage() error = %v", err)
	}
	if ids := remoteIDs(t, remote); len(ids) != 1 || ids[0] != "rec-1" {
		t.Fatalf("remote ids = %v", ids)
	}
	if status, _ := repo.SyncStatus(ctx, "rec-1"); status != storage.SyncSynced {
		t.Errorf("status = %q, want synced", status)
	}

	// A redelivered message is skipped.
	if err := w.HandleSyncMessage(ctx, "rec-1"); err != nil {
		t.Fatalf("second HandleSyncMessage() error = %v", err)
	}
	if len(remoteIDs(t, remote)) != 1 || obs.count(OutcomeSkipped) != 1 {
		t.Errorf("redelivery was not skipped: %v", obs.seen)
	}
}

func TestHandleSyncMessage_MissingRecordIsSkipped(t *testing.T) {
	_, _, w, obs := setup(t)
	if err := w.HandleSyncMessage(context.Background(), "gone"); err != nil {
		t.Fatalf("HandleSyncMessage(gone) error = %v", err)
	}
	if obs.count(OutcomeSkipped) != 1 {
		t.Errorf("outcomes = %v", obs.seen)
	}
}

func TestHandleSyncMessage_DuplicateInSheet(t *testing.T) {
	t.Run("same id counts as synced", func(t *testing.T) {
		repo, remote, w, _ := setup(t)
		ctx := context.Background()
		rec := record("rec-1", "JKTB000001")
		repo.Submit(ctx, rec)
		remote.Store.Submit(ctx, rec)

		if err := w.HandleSyncMessage(ctx, "rec-1"); err != nil {
			t.Fatalf("HandleSyncMessage() error = %v", err)
		}
		if status, _ := repo.SyncStatus(ctx, "rec-1"); status != storage.SyncSynced {
			t.Errorf("status = %q, want synced", status)
		}
	})

	t.Run("No. PJB held by another id is not synced", func(t *testing.T) {
		repo, remote, w, obs := setup(t)
		ctx := context.Background()
		// The sheet still holds a deleted record whose No. PJB was reused.
		remote.Store.Submit(ctx, record("old", "JKTB000001"))
		repo.Submit(ctx, record("new", "JKTB000001"))

		if err := w.HandleSyncMessage(ctx, "new"); err != nil {
			t.Fatalf("HandleSyncMessage() error = %v", err)
		}
		if status, _ := repo.SyncStatus(ctx, "new"); status != storage.SyncError {
			t.Errorf("status = %q, want error", status)
		}
		if obs.count(OutcomeFailed) != 1 {
			t.Errorf("outcomes = %v", obs.seen)
		}

		if err := w.HandleDeleteMessage(ctx, "old"); err != nil {
			t.Fatalf("HandleDeleteMessage() error = %v", err)
		}
		if n, err := w.ProcessPending(ctx); err != nil || n != 1 {
			t.Fatalf("ProcessPending() = %d, %v", n, err)
		}
		if ids := remoteIDs(t, remote); len(ids) != 1 || ids[0] != "new" {
			t.Errorf("remote ids = %v, want [new]", ids)
		}
		if status, _ := repo.SyncStatus(ctx, "new"); status != storage.SyncSynced {
			t.Errorf("status after retry = %q", status)
		}
	})
}

func TestHandleSyncMessage_RemoteFailureMarksError(t *testing.T) {
	repo, remote, w, obs := setup(t)
	ctx := context.Background()
	repo.Submit(ctx, record("rec-1", "JKTB000001"))
	remote.submitErr = core.Transient("submit", errors.New("503"))

	if err := w.HandleSyncMessage(ctx, "rec-1"); err != nil {
		t.Fatalf("HandleSyncMessage() should not requeue, got %v", err)
	}
	if status, _ := repo.SyncStatus(ctx, "rec-1"); status != storage.SyncError {
		t.Errorf("status = %q, want error", status)
	}
	if obs.count(OutcomeFailed) != 1 {
		t.Errorf("outcomes = %v", obs.seen)
	}

	// The pending scan retries once the sheet recovers.
	remote.submitErr = nil
	n, err := w.ProcessPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ProcessPending() = %d, %v", n, err)
	}
	if status, _ := repo.SyncStatus(ctx, "rec-1"); status != storage.SyncSynced {
		t.Errorf("status after retry = %q", status)
	}
}

func TestProcessPending_RespectsBatchSize(t *testing.T) {
	repo, remote, w, _ := setup(t)
	ctx := context.Background()
	for _, r := range []core.TransactionRecord{
		record("a", "JKTB000001"),
		record("b", "JKTB000002"),
		record("c", "JKTB000003"),
	} {
		repo.Submit(ctx, r)
	}

	n, err := w.ProcessPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ProcessPending() = %d, %v, want batch of 2", n, err)
	}
	if ids := remoteIDs(t, remote); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("remote ids = %v", ids)
	}

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck() error = %v", err)
	}
	if len(remoteIDs(t, remote)) != 3 {
		t.Errorf("startup check did not sync the rest: %v", remoteIDs(t, remote))
	}
	if n, _ := w.ProcessPending(ctx); n != 0 {
		t.Errorf("nothing should be pending, processed %d", n)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	_, remote, w, obs := setup(t)
	ctx := context.Background()
	remote.Store.Submit(ctx, record("rec-1", "JKTB000001"))

	if err := w.HandleDeleteMessage(ctx, "rec-1"); err != nil {
		t.Fatalf("HandleDeleteMessage() error = %v", err)
	}
	if len(remoteIDs(t, remote)) != 0 {
		t.Error("row still present in remote")
	}

	remote.deleteErr = core.Transient("delete", errors.New("timeout"))
	if err := w.HandleDeleteMessage(ctx, "rec-2"); !core.IsTransient(err) {
		t.Errorf("transient delete failure should be returned for requeue, got %v", err)
	}
	if obs.count(OutcomeDeleted) != 1 || obs.count(OutcomeFailed) != 1 {
		t.Errorf("outcomes = %v", obs.seen)
	}
}

func TestRunPending_StopsOnCancel(t *testing.T) {
	repo, remote, w, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	repo.Submit(ctx, record("rec-1", "JKTB000001"))

	done := make(chan error, 1)
	go func() { done <- w.RunPending(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(remoteIDs(t, remote)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunPending() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunPending did not stop")
	}
	if len(remoteIDs(t, remote)) != 1 {
		t.Error("ticker did not sync the pending record")
	}
}
