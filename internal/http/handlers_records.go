package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"penjualan/internal/core"
	"penjualan/internal/listview"
	applog "penjualan/internal/log"
	"penjualan/internal/middleware/security"
)

const (
	msgStoreUnavailable = "Records are unavailable right now. Please try again."
	msgDeleted          = "Entry deleted successfully!"
	msgNotConfirmed     = "Deletion was not confirmed."
	msgNotFound         = "Entry not found"
)

// fetchAll loads every record under the store timeout and updates the
// stored-records gauge.
func (s *Server) fetchAll(r *http.Request) ([]core.TransactionRecord, error) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	records, err := s.store.FetchAll(ctx)
	if err != nil {
		applog.NewStructuredLogger(s.log(r)).LogError(r.Context(), "Failed to fetch records", err, applog.ComponentRecord, applog.OpList, nil)
		return nil, err
	}
	s.metrics.SetStoredRecords(len(records))
	return records, nil
}

func (s *Server) handleRecordsPage(w http.ResponseWriter, r *http.Request) {
	s.renderList(w, r, "records.html")
}

// handleRecordsPanel re-renders only the panel; filter changes and the
// record:created event target it.
func (s *Server) handleRecordsPanel(w http.ResponseWriter, r *http.Request) {
	s.renderList(w, r, "records_panel")
}

func (s *Server) renderList(w http.ResponseWriter, r *http.Request, name string) {
	records, err := s.fetchAll(r)
	if err != nil {
		ServiceUnavailableError(msgStoreUnavailable).Write(w)
		return
	}

	b := NewHTMXResponse()
	if err := b.Render(s.templates, name, newListView(records, ParseFilters(r.URL.Query()))); err != nil {
		s.renderFailed(r, name, err)
	}
	b.Write(w)
}

// handleExport downloads the filtered rows as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.fetchAll(r)
	if err != nil {
		ServiceUnavailableError(msgStoreUnavailable).Write(w)
		return
	}

	rows := listview.Apply(records, ParseFilters(r.URL.Query()))
	filename := listview.ExportFilename(s.now())

	w.Header().Set("Content-Type", listview.CSVContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	security.NoStore(w)
	w.WriteHeader(http.StatusOK)

	if err := listview.WriteCSV(w, rows); err != nil {
		applog.NewStructuredLogger(s.log(r)).LogError(r.Context(), "CSV export failed", err, applog.ComponentExport, applog.OpExport, nil)
		return
	}
	s.metrics.ObserveExport(len(rows))
	applog.NewStructuredLogger(s.log(r)).LogExport(r.Context(), len(rows), filename)
}

// lookup finds one record, using the store's direct lookup when it has one.
func (s *Server) lookup(r *http.Request, id string) (core.TransactionRecord, bool, error) {
	if f, ok := s.store.(recordFinder); ok {
		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		rec, err := f.GetRecord(ctx, id)
		if errors.Is(err, core.ErrRecordNotFound) {
			return core.TransactionRecord{}, false, nil
		}
		if err != nil {
			return core.TransactionRecord{}, false, err
		}
		return rec, true, nil
	}

	records, err := s.fetchAll(r)
	if err != nil {
		return core.TransactionRecord{}, false, err
	}
	rec, ok := listview.Find(records, id)
	return rec, ok, nil
}

// handleRecordDetail renders the read-only detail dialog.
func (s *Server) handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.lookup(r, r.PathValue("id"))
	if err != nil {
		ServiceUnavailableError(msgStoreUnavailable).Write(w)
		return
	}
	if !ok {
		NotFoundError(msgNotFound).Write(w)
		return
	}

	b := NewHTMXResponse()
	if err := b.Render(s.templates, "record_detail", rec); err != nil {
		s.renderFailed(r, "record_detail", err)
	}
	b.Write(w)
}

// handleEditRecord only announces the entry; editing is not supported.
func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.lookup(r, r.PathValue("id"))
	if err != nil {
		ServiceUnavailableError(msgStoreUnavailable).Write(w)
		return
	}
	if !ok {
		NotFoundError(msgNotFound).Write(w)
		return
	}

	NewHTMXResponse().
		Status(http.StatusNotImplemented).
		TriggerNotification(NotificationInfo, "Edit functionality would open for entry: "+rec.NoPJB, 3000).
		Write(w)
}

// handleDeleteRecord removes one record after explicit confirmation and
// re-renders the panel with the caller's filters. Deleting an unknown id
// leaves the list unchanged.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	values, err := requestValues(r)
	if err != nil {
		BadRequestError(msgInvalidRequest).Write(w)
		return
	}
	if !confirmed(values) {
		ErrorResponse(http.StatusBadRequest, msgNotConfirmed).
			TriggerNotification(NotificationWarning, msgNotConfirmed, 3000).
			Write(w)
		return
	}

	before, err := s.fetchAll(r)
	if err != nil {
		ServiceUnavailableError(msgStoreUnavailable).Write(w)
		return
	}
	after, found := listview.Delete(before, id)

	dctx, cancel := context.WithTimeout(ctx, storeTimeout)
	err = s.store.DeleteByID(dctx, id)
	cancel()
	if err != nil {
		fields := applog.NewFields()
		fields[applog.FieldRecordID] = id
		applog.NewStructuredLogger(s.log(r)).LogError(ctx, "Record delete failed", err, applog.ComponentRecord, applog.OpDelete, fields)
		if core.IsPermanent(err) {
			ErrorResponse(http.StatusConflict, "The entry could not be deleted.").
				TriggerErrorNotification("The entry could not be deleted.").
				Write(w)
			return
		}
		ServiceUnavailableError(msgStoreUnavailable).
			TriggerErrorNotification("Delete failed. Please try again.").
			Write(w)
		return
	}

	applog.NewStructuredLogger(s.log(r)).LogRecordDeleted(ctx, id, found)
	s.metrics.SetStoredRecords(len(after))

	b := NewHTMXResponse()
	if found {
		s.metrics.IncrDeletion()
		b.TriggerSuccessNotification(msgDeleted).TriggerRecordDeleted(id)
	} else {
		b.TriggerNotification(NotificationInfo, msgNotFound, 3000)
	}
	if err := b.Render(s.templates, "records_panel", newListView(after, ParseFilters(values))); err != nil {
		s.renderFailed(r, "records_panel", err)
	}
	b.Write(w)
}
