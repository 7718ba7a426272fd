// Package adapters composes storage, services and caches into the record
// store the HTTP layer talks to.
package adapters

import (
	"context"

	"penjualan/internal/core"
	"penjualan/internal/sheets"
)

// RecordReader is the read side of the SQL repository.
type RecordReader interface {
	FetchAll(ctx context.Context) ([]core.TransactionRecord, error)
	GetRecord(ctx context.Context, id string) (core.TransactionRecord, error)
}

// RecordWriter is the write side, normally a services.RecordService so
// writes also enqueue sheet sync.
type RecordWriter interface {
	CreateRecord(ctx context.Context, r core.TransactionRecord) (string, error)
	DeleteRecord(ctx context.Context, id string) error
}

// SQLAdapter serves reads from the repository and routes writes through
// the record service.
type SQLAdapter struct {
	reader RecordReader
	writer RecordWriter
}

var _ sheets.RecordStore = (*SQLAdapter)(nil)

func NewSQLAdapter(reader RecordReader, writer RecordWriter) *SQLAdapter {
	return &SQLAdapter{reader: reader, writer: writer}
}

func (a *SQLAdapter) Submit(ctx context.Context, r core.TransactionRecord) (string, error) {
	return a.writer.CreateRecord(ctx, r)
}

func (a *SQLAdapter) FetchAll(ctx context.Context) ([]core.TransactionRecord, error) {
	return a.reader.FetchAll(ctx)
}

func (a *SQLAdapter) DeleteByID(ctx context.Context, id string) error {
	return a.writer.DeleteRecord(ctx, id)
}

func (a *SQLAdapter) GetRecord(ctx context.Context, id string) (core.TransactionRecord, error) {
	return a.reader.GetRecord(ctx, id)
}
