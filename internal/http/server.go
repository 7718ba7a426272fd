package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"penjualan/internal/core"
	"penjualan/internal/form"
	applog "penjualan/internal/log"
	"penjualan/internal/metrics"
	"penjualan/internal/middleware/ratelimit"
	"penjualan/internal/middleware/security"
	"penjualan/internal/middleware/trace"
	"penjualan/internal/sheets"
	appweb "penjualan/web"
)

const (
	storeTimeout      = 10 * time.Second
	readyTimeout      = 5 * time.Second
	staticCacheMaxAge = 3600
)

// recordFinder is implemented by stores that can load one record without
// listing everything.
type recordFinder interface {
	GetRecord(ctx context.Context, id string) (core.TransactionRecord, error)
}

// Options configures optional server collaborators. Zero values get
// defaults.
type Options struct {
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	// Ready probes the storage backend for /readyz.
	Ready func(ctx context.Context) error
	Now   func() time.Time
	NewID func() string
}

type Server struct {
	http.Server
	templates *template.Template
	store     sheets.RecordStore
	logger    *applog.Logger
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	ready     func(ctx context.Context) error
	now       func() time.Time
	newID     func() string
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, store sheets.RecordStore, opts Options) (*Server, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		store:     store,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		metrics:   m,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(logger),
		ready:     opts.Ready,
		now:       opts.Now,
		newID:     opts.NewID,
		started:   time.Now(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = form.NewRecordID
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticCacheMaxAge)(static))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /ui/form", s.handleFormUpdate)
	mux.HandleFunc("POST /records", s.handleCreateRecord)

	mux.HandleFunc("GET /records", s.handleRecordsPage)
	mux.HandleFunc("GET /ui/records", s.handleRecordsPanel)
	mux.HandleFunc("GET /records/export.csv", s.handleExport)
	mux.HandleFunc("GET /records/{id}", s.handleRecordDetail)
	mux.HandleFunc("GET /records/{id}/edit", s.handleEditRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("POST /records/{id}/delete", s.handleDeleteRecord)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return nil
}

// middleware wraps the mux, outermost first: tracing, security headers,
// probe detection, write rate limiting, component tagging, then Prometheus
// instrumentation directly around the mux so it sees the matched pattern.
func (s *Server) middleware(mux http.Handler) http.Handler {
	var h http.Handler = s.metrics.Middleware(mux)
	h = applog.ComponentMiddleware(applog.ComponentHTTP)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware(h)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.log(r).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		TriggerErrorNotification("Too many requests. Please wait a moment and try again.").
		Write(w)
}

// log returns the request-scoped logger installed by the middleware chain.
func (s *Server) log(r *http.Request) *applog.Logger {
	if _, ok := r.Context().Value(applog.LoggerContextKey).(*applog.Logger); ok {
		return applog.FromContext(r.Context())
	}
	return s.logger
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
