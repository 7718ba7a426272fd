// Package services orchestrates record writes across local storage and the
// sync queue.
package services

import (
	"context"
	"errors"
	"fmt"

	"penjualan/internal/core"
	applog "penjualan/internal/log"
)

// RecordRepository is the local store the service writes to first.
type RecordRepository interface {
	Submit(ctx context.Context, r core.TransactionRecord) (string, error)
	DeleteByID(ctx context.Context, id string) error
	Close() error
}

// Publisher enqueues sync work for the background worker.
type Publisher interface {
	PublishRecordSync(ctx context.Context, id string) error
	PublishRecordDelete(ctx context.Context, id string) error
	Close() error
}

// RecordService saves records locally and then asks the worker to mirror
// the change to the remote sheet. Queue failures never fail the request;
// the worker's pending scan picks those records up later.
type RecordService struct {
	storage   RecordRepository
	publisher Publisher
	logger    *applog.Logger
}

// NewRecordService builds a service. publisher may be nil when no broker is
// configured.
func NewRecordService(storage RecordRepository, publisher Publisher) *RecordService {
	return &RecordService{
		storage:   storage,
		publisher: publisher,
		logger:    applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentRecord),
	}
}

// WithLogger replaces the service logger.
func (s *RecordService) WithLogger(l *applog.Logger) *RecordService {
	s.logger = l.WithComponent(applog.ComponentRecord)
	return s
}

// CreateRecord stores r and publishes a sync message.
func (s *RecordService) CreateRecord(ctx context.Context, r core.TransactionRecord) (string, error) {
	id, err := s.storage.Submit(ctx, r)
	if err != nil {
		return "", err
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", applog.FieldRecordID, id)
		return id, nil
	}
	if err := s.publisher.PublishRecordSync(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message", applog.FieldRecordID, id, applog.FieldError, err)
	}
	return id, nil
}

// DeleteRecord removes the record locally and publishes a delete message.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.storage.DeleteByID(ctx, id); err != nil {
		return err
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping delete message", applog.FieldRecordID, id)
		return nil
	}
	if err := s.publisher.PublishRecordDelete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish delete message", applog.FieldRecordID, id, applog.FieldError, err)
	}
	return nil
}

// Close closes storage and the publisher.
func (s *RecordService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close record service: %w", err)
	}
	return nil
}
