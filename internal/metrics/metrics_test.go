package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.IncrSubmission(SubmitSuccess)
	m.IncrSubmission(SubmitSuccess)
	m.IncrSubmission(SubmitValidation)
	m.IncrDeletion()
	m.ObserveExport(3)
	m.SetStoredRecords(7)

	s := m.Snapshot()
	if s.Submissions[SubmitSuccess] != 2 || s.Submissions[SubmitValidation] != 1 || s.Submissions[SubmitPermanent] != 0 {
		t.Errorf("submissions = %v", s.Submissions)
	}
	if s.Deletions != 1 || s.Exports != 1 || s.Stored != 7 {
		t.Errorf("Snapshot() = %+v", s)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncrCacheHit("records")
	m.IncrCacheMiss("records")
	m.IncrSync("synced")
	m.ObserveHTTP(http.MethodGet, "GET /records", 200, 10*time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`penjualan_cache_hits_total{cache="records"} 1`,
		`penjualan_cache_misses_total{cache="records"} 1`,
		`penjualan_sync_outcomes_total{outcome="synced"} 1`,
		`penjualan_http_requests_total{method="GET",route="GET /records",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/records/a", "/records/b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	if !strings.Contains(body, `penjualan_http_requests_total{method="GET",route="GET /records/{id}",status="404"} 2`) {
		t.Errorf("route pattern not used as label:\n%s", body)
	}
}

func TestNewIsIsolated(t *testing.T) {
	a, b := New(), New()
	a.IncrDeletion()
	if b.Snapshot().Deletions != 0 {
		t.Error("instances share state")
	}
}
