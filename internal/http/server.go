package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/privatep88/Petty-Cash/internal/core"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/middleware/ratelimit"
	"github.com/privatep88/Petty-Cash/internal/middleware/security"
	"github.com/privatep88/Petty-Cash/internal/middleware/trace"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/services"
	appweb "github.com/privatep88/Petty-Cash/web"
)

// Server serves the expense form and the period API.
type Server struct {
	http.Server
	svc       *services.PeriodService
	store     *periods.Store
	templates *template.Template
	logger    *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// Options tunes the server. Zero values pick the defaults.
type Options struct {
	RequestsPerMinute int
}

// NewServer wires routes and middleware around svc. store is consulted for
// readiness.
func NewServer(addr string, svc *services.PeriodService, store *periods.Store, logger *applog.Logger, opts Options) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		svc:      svc,
		store:    store,
		logger:   logger,
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		started: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(template.FuncMap{
		"cost":  formatCost,
		"inc":   func(i int) int { return i + 1 },
		"equal": func(a, b string) bool { return a == b },
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(applog.ComponentTemplate).Error("Failed parsing templates",
			applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/meta", s.handleMeta)
	mux.HandleFunc("GET /api/periods/{year}/{month}", s.handleGetPeriod)
	mux.HandleFunc("POST /api/periods/{year}/{month}/entries", s.handleAddEntry)
	mux.HandleFunc("PATCH /api/periods/{year}/{month}/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/periods/{year}/{month}/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("PUT /api/periods/{year}/{month}/notes", s.handleSetNotes)
	mux.HandleFunc("GET /api/years/{year}/totals", s.handleYearTotals)
	mux.HandleFunc("GET /export/{year}/{month}", s.handleExport)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP,
		http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background loops and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// writeError answers with the status mapped from err and logs server faults.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldOperation, op,
			applog.FieldPath, r.URL.Path)
	}
	ErrorResponse(status, msg).Write(w)
}

// respondPeriod answers with the fresh view of the edited period.
func (s *Server) respondPeriod(w http.ResponseWriter, r *http.Request, status int, year, month string, entry *core.ExpenseEntry) {
	view, err := s.svc.Period(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpRender, err)
		return
	}
	NewResponse().Status(status).JSON(periodResponse{PeriodView: view, Entry: entry}).Write(w)
}
