// Package worker mirrors locally stored records to the remote sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
	"penjualan/internal/sheets"
	"penjualan/internal/storage"
)

// LocalStore is the subset of the SQL repository the worker reads from.
type LocalStore interface {
	GetRecord(ctx context.Context, id string) (core.TransactionRecord, error)
	SyncStatus(ctx context.Context, id string) (string, error)
	PendingSync(ctx context.Context, limit int) ([]string, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Remote is the sheet the records are copied to.
type Remote interface {
	sheets.RecordWriter
	sheets.RecordDeleter
}

// Sync outcomes reported to the observer.
const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeDeleted = "deleted"
)

type SyncWorker struct {
	storage   LocalStore
	remote    Remote
	batchSize int
	logger    *applog.Logger
	observe   func(outcome string)
}

func NewSyncWorker(storage LocalStore, remote Remote, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		remote:    remote,
		batchSize: batchSize,
		logger:    applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker),
		observe:   func(string) {},
	}
}

// WithLogger replaces the worker logger.
func (w *SyncWorker) WithLogger(l *applog.Logger) *SyncWorker {
	w.logger = l.WithComponent(applog.ComponentWorker)
	return w
}

// WithObserver registers a callback for every sync outcome.
func (w *SyncWorker) WithObserver(fn func(outcome string)) *SyncWorker {
	if fn != nil {
		w.observe = fn
	}
	return w
}

// HandleSyncMessage copies one stored record to the sheet.
//
// A record that is gone or already synced is skipped. Remote failures mark
// the record with a sync error and are left to the pending scan, so the
// message itself is never requeued.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, id string) error {
	w.logger.InfoContext(ctx, "Processing sync message", applog.FieldRecordID, id)

	status, err := w.storage.SyncStatus(ctx, id)
	if errors.Is(err, core.ErrRecordNotFound) {
		w.logger.InfoContext(ctx, "Record no longer exists, skipping sync", applog.FieldRecordID, id)
		w.observe(OutcomeSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sync status: %w", err)
	}
	if status == storage.SyncSynced {
		w.observe(OutcomeSkipped)
		return nil
	}

	rec, err := w.storage.GetRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	return w.syncRecord(ctx, rec)
}

func (w *SyncWorker) syncRecord(ctx context.Context, rec core.TransactionRecord) error {
	_, err := w.remote.Submit(ctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrDuplicateID):
		// An earlier attempt reached the sheet but was never marked.
		w.logger.InfoContext(ctx, "Record already present in sheet", applog.FieldRecordID, rec.ID)
	default:
		w.logger.ErrorContext(ctx, "Failed to sync record",
			applog.FieldRecordID, rec.ID,
			applog.FieldErrorKind, errorKind(err),
			applog.FieldError, err)
		w.observe(OutcomeFailed)
		if merr := w.storage.MarkSyncError(ctx, rec.ID); merr != nil {
			return fmt.Errorf("mark sync error: %w", merr)
		}
		return nil
	}

	if err := w.storage.MarkSynced(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	w.observe(OutcomeSynced)
	return nil
}

// HandleDeleteMessage removes a record's row from the sheet. Transient
// failures are returned so the message is redelivered.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, id string) error {
	w.logger.InfoContext(ctx, "Processing delete message", applog.FieldRecordID, id)

	if err := w.remote.DeleteByID(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to delete record from sheet",
			applog.FieldRecordID, id,
			applog.FieldErrorKind, errorKind(err),
			applog.FieldError, err)
		w.observe(OutcomeFailed)
		return err
	}

	w.observe(OutcomeDeleted)
	return nil
}

// ProcessPending syncs up to one batch of records not yet in the sheet.
// It backs up lost queue messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger pending scan when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", applog.FieldCount, synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.storage.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending records", applog.FieldCount, len(ids))

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		rec, err := w.storage.GetRecord(ctx, id)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load pending record", applog.FieldRecordID, id, applog.FieldError, err)
			continue
		}
		if err := w.syncRecord(ctx, rec); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync pending record", applog.FieldRecordID, id, applog.FieldError, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// RunPending calls ProcessPending every interval until ctx is done.
func (w *SyncWorker) RunPending(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Pending sync failed", applog.FieldError, err)
			}
		}
	}
}

func errorKind(err error) string {
	switch {
	case core.IsTransient(err):
		return core.PersistTransient.String()
	case core.IsPermanent(err):
		return core.PersistPermanent.String()
	}
	return "unknown"
}
