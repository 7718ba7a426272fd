// Package backend builds the record store selected by DATA_BACKEND.
package backend

import (
	"context"
	"time"

	"penjualan/internal/core"
	"penjualan/internal/sheets"
)

// Backend is the record store the HTTP layer uses.
type Backend interface {
	sheets.RecordStore
}

// Finder is implemented by backends that can load one record directly.
type Finder interface {
	GetRecord(ctx context.Context, id string) (core.TransactionRecord, error)
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult bundles a backend with its lifecycle hooks. Cleanup and
// Ready may be nil.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
	Ready   ReadyFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds everything needed to build any backend.
type Config struct {
	Type BackendType

	// SQL backends
	SQLiteDBPath string
	DatabaseURL  string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Memory backend seed
	SeedFile string

	// List cache for the remote backends
	RedisURL string
	CacheTTL time.Duration
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
