package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"penjualan/internal/core"
	"penjualan/internal/form"
	applog "penjualan/internal/log"
	"penjualan/internal/metrics"
)

const (
	msgSubmitted       = "Data submitted successfully!"
	msgTransientSubmit = "The entry could not be saved right now. Please try again."
	msgInvalidRequest  = "Invalid request format"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b := NewHTMXResponse()
	if err := b.Render(s.templates, "index.html", newFormView(form.NewState(), nil)); err != nil {
		s.renderFailed(r, "index.html", err)
	}
	b.Write(w)
}

// handleFormUpdate recomputes derived fields and applies quantity buttons.
func (s *Server) handleFormUpdate(w http.ResponseWriter, r *http.Request) {
	state, action, err := ParseFormState(r)
	if err != nil {
		s.log(r).WarnContext(r.Context(), "Form update parse error", applog.FieldError, err)
		BadRequestError(msgInvalidRequest).Write(w)
		return
	}
	state = applyAction(state, action)

	s.renderForm(w, r, NewHTMXResponse(), state, nil)
}

// handleCreateRecord validates the form, assembles the record and hands it
// to the store. The submitted form is re-rendered unchanged on any failure.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.log(r)

	state, _, err := ParseFormState(r)
	if err != nil {
		logger.WarnContext(ctx, "Record submit parse error", applog.FieldError, err)
		BadRequestError(msgInvalidRequest).Write(w)
		return
	}

	in, err := form.Validate(state)
	if err != nil {
		verrs, _ := core.AsValidationErrors(err)
		logger.InfoContext(ctx, "Record validation failed",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldCount, len(verrs))
		s.metrics.IncrSubmission(metrics.SubmitValidation)
		s.renderForm(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), state, verrs)
		return
	}

	rec := form.Assemble(in, s.now(), s.newID())

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	id, err := s.store.Submit(sctx, rec)
	cancel()
	if err != nil {
		s.submitFailed(w, r, state, rec, err)
		return
	}

	applog.NewStructuredLogger(logger).LogRecordSubmitted(ctx, id, rec.NoPJB, rec.Branch, rec.ProductType, rec.Quantity, rec.HPP.Cents)
	s.metrics.IncrSubmission(metrics.SubmitSuccess)

	b := NewHTMXResponse().
		TriggerSuccessNotification(msgSubmitted).
		TriggerFormReset().
		TriggerRecordCreated(id)
	s.renderForm(w, r, b, form.NewState(), nil)
}

func (s *Server) submitFailed(w http.ResponseWriter, r *http.Request, state form.State, rec core.TransactionRecord, err error) {
	fields := applog.NewFields()
	fields[applog.FieldNoPJB] = rec.NoPJB
	applog.NewStructuredLogger(s.log(r)).LogError(r.Context(), "Record submit failed", err, applog.ComponentRecord, applog.OpSubmit, fields)

	b := NewHTMXResponse()
	if core.IsPermanent(err) {
		s.metrics.IncrSubmission(metrics.SubmitPermanent)
		msg := "The entry was rejected by storage."
		if errors.Is(err, core.ErrDuplicateRecord) {
			msg = fmt.Sprintf("An entry with No. PJB %s already exists.", rec.NoPJB)
		}
		b.Status(http.StatusConflict).TriggerErrorNotification(msg)
	} else {
		s.metrics.IncrSubmission(metrics.SubmitTransient)
		b.Status(http.StatusServiceUnavailable).
			Header("Retry-After", "5").
			TriggerErrorNotification(msgTransientSubmit)
	}
	s.renderForm(w, r, b, state, nil)
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, state form.State, errs core.ValidationErrors) {
	if err := b.Render(s.templates, "form_body", newFormView(state, errs)); err != nil {
		s.renderFailed(r, "form_body", err)
	}
	b.Write(w)
}

func (s *Server) renderFailed(r *http.Request, name string, err error) {
	fields := applog.NewFields()
	fields["template"] = name
	applog.NewStructuredLogger(s.log(r)).LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender, fields)
}
