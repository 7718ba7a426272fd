package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"penjualan/internal/core"
	"penjualan/internal/sheets"
)

// Store keeps records in process memory, in submission order.
type Store struct {
	mu    sync.Mutex
	items []core.TransactionRecord
}

var _ sheets.RecordStore = (*Store)(nil)

func New(seed ...core.TransactionRecord) *Store {
	return &Store{items: core.CloneRecords(seed)}
}

// NewFromFile seeds the store from a JSON array of records. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.TransactionRecord
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return New(seed...), nil
}

// Submit stores a copy of the record. Records without an id get one; a
// repeated id or No. PJB is rejected as a permanent error.
func (s *Store) Submit(_ context.Context, r core.TransactionRecord) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.ID == r.ID {
			return "", core.Permanent("submit", fmt.Errorf("%w: %s", core.ErrDuplicateID, r.ID))
		}
		if strings.EqualFold(existing.NoPJB, r.NoPJB) {
			return "", core.Permanent("submit", fmt.Errorf("%w: No. PJB %s", core.ErrDuplicateRecord, r.NoPJB))
		}
	}
	s.items = append(s.items, r.Clone())
	return r.ID, nil
}

func (s *Store) FetchAll(_ context.Context) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := core.CloneRecords(s.items)
	if out == nil {
		out = []core.TransactionRecord{}
	}
	return out, nil
}

func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}
