package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"penjualan/internal/core"
)

func record(id, noPJB string) core.TransactionRecord {
	return core.TransactionRecord{
		ID:       id,
		NoPJB:    noPJB,
		Branch:   core.DeriveBranch(noPJB),
		Quantity: 1,
		Units:    []core.Unit{{Marking: "M-" + id}},
	}
}

func TestStoreSubmitFetchDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	all, err := s.FetchAll(ctx)
	if err != nil || all == nil || len(all) != 0 {
		t.Fatalf("empty store FetchAll = %v, %v", all, err)
	}

	for _, r := range []core.TransactionRecord{record("a", "JKTB0001"), record("b", "BDGB0002"), record("c", "SBYB0003")} {
		id, err := s.Submit(ctx, r)
		if err != nil || id != r.ID {
			t.Fatalf("Submit(%s) = %q, %v", r.ID, id, err)
		}
	}

	all, _ = s.FetchAll(ctx)
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("FetchAll order wrong: %+v", all)
	}

	if err := s.DeleteByID(ctx, "b"); err != nil {
		t.Fatalf("DeleteByID error: %v", err)
	}
	if err := s.DeleteByID(ctx, "missing"); err != nil {
		t.Fatalf("DeleteByID(missing) should be a no-op, got %v", err)
	}
	all, _ = s.FetchAll(ctx)
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "c" {
		t.Fatalf("after delete: %+v", all)
	}
}

func TestStoreAssignsID(t *testing.T) {
	s := New()
	id, err := s.Submit(context.Background(), record("", "JKTB0001"))
	if err != nil || len(id) != 36 {
		t.Fatalf("Submit without id = %q, %v", id, err)
	}
}

func TestStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New(record("a", "JKTB0001"))

	_, err := s.Submit(ctx, record("a", "JKTB0002"))
	if !core.IsPermanent(err) || !errors.Is(err, core.ErrDuplicateID) || !errors.Is(err, core.ErrDuplicateRecord) {
		t.Errorf("duplicate id: got %v", err)
	}
	_, err = s.Submit(ctx, record("b", "jktb0001"))
	if !core.IsPermanent(err) || !errors.Is(err, core.ErrDuplicateRecord) || errors.Is(err, core.ErrDuplicateID) {
		t.Errorf("duplicate No. PJB: got %v", err)
	}
	all, _ := s.FetchAll(ctx)
	if len(all) != 1 {
		t.Errorf("rejected submits must not change the store, have %d", len(all))
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New(record("a", "JKTB0001"))

	all, _ := s.FetchAll(ctx)
	all[0].Units[0].Marking = "changed"
	all[0].NoPJB = "changed"

	again, _ := s.FetchAll(ctx)
	if again[0].Units[0].Marking != "M-a" || again[0].NoPJB != "JKTB0001" {
		t.Error("FetchAll leaked internal state")
	}
}

func TestStoreConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Submit(ctx, record("", "JKTB"+string(rune('A'+i%26))+string(rune('a'+i/26))))
		}(i)
	}
	wg.Wait()
	all, _ := s.FetchAll(ctx)
	if len(all) != 50 {
		t.Errorf("expected 50 records, got %d", len(all))
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing seed file should not fail: %v", err)
	}
	if all, _ := s.FetchAll(context.Background()); len(all) != 0 {
		t.Fatalf("expected empty store, got %d", len(all))
	}

	path := filepath.Join(dir, "seed.json")
	seed := `[{"id":"1","timeStamp":"2024-01-15T10:30:00Z","date":"2024-01-15","month":"January 2024",
	"noPJB":"JKTB001234","branch":"JKTB","customerName":"PT. ABC Manufacturing","customerClassification":"business",
	"quantity":2,"productType":"Engine Type A","product":"Engine Model X1","mark":"Mark-A1","hpp":50000000,
	"paymentScheme":"Credit 30 Days","salesRepresentative":"John Doe",
	"dynamicFields":[{"marking":"MRK001","serialNumber":"SN001234","snEngine":"ENG001234"},{"marking":"MRK002","serialNumber":"SN001235","snEngine":"ENG001235"}]}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile error: %v", err)
	}
	all, _ := s.FetchAll(context.Background())
	if len(all) != 1 || all[0].HPP.Cents != 5000000000 || all[0].Date.String() != "2024-01-15" || len(all[0].Units) != 2 {
		t.Fatalf("unexpected seeded record: %+v", all)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(bad); err == nil {
		t.Error("malformed seed file should fail")
	}
}
