package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLogger_StampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentStorage)

	logger.Info("opened", FieldBackend, "sqlite")

	out := buf.String()
	if !strings.Contains(out, "component=storage") {
		t.Errorf("output %q missing component", out)
	}
	if !strings.Contains(out, "backend=sqlite") {
		t.Errorf("output %q missing attribute", out)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentApp).WithComponent(ComponentWorker)

	if logger.Component() != ComponentWorker {
		t.Fatalf("Component() = %q, want %q", logger.Component(), ComponentWorker)
	}
	logger.Warn("retrying")
	if !strings.Contains(buf.String(), "component=worker") {
		t.Errorf("output %q missing worker component", buf.String())
	}
}

func TestComponentMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentApp).With(FieldRequestID, "req_1")

	var got *Logger
	h := ComponentMiddleware(ComponentHTTP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		got.Info("handled")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), LoggerContextKey, base))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("component = %v", got)
	}
	if out := buf.String(); !strings.Contains(out, "request_id=req_1") || !strings.Contains(out, "component=http") {
		t.Errorf("request attributes lost: %q", out)
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("unexpected fallback logger: %+v", l)
	}
}

func TestStructuredLogger_Events(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))
	ctx := context.Background()

	sl.LogRecordSubmitted(ctx, "id-1", "JKTB001234", "JKTB", "Engine Type A", 2, 5000000000)
	sl.LogRecordDeleted(ctx, "id-1", true)
	sl.LogExport(ctx, 3, "data-export-2024-01-15.csv")
	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, OpSubmit, nil)

	out := buf.String()
	for _, want := range []string{
		"no_pjb=JKTB001234",
		"operation=delete",
		"filename=data-export-2024-01-15.csv",
		`error="disk full"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
