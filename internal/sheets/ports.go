package sheets

import (
	"context"

	"penjualan/internal/core"
)

// Ports for outbound storage adapters. Failures are reported as
// *core.PersistError so callers can tell transient from permanent.
type (
	// RecordWriter persists a new transaction record and returns its id.
	RecordWriter interface {
		Submit(ctx context.Context, r core.TransactionRecord) (id string, err error)
	}

	// RecordLister returns every stored record in submission order.
	RecordLister interface {
		FetchAll(ctx context.Context) ([]core.TransactionRecord, error)
	}

	// RecordDeleter removes a record. Deleting an unknown id is not an error.
	RecordDeleter interface {
		DeleteByID(ctx context.Context, id string) error
	}

	// RecordStore combines the three ports.
	RecordStore interface {
		RecordWriter
		RecordLister
		RecordDeleter
	}
)
