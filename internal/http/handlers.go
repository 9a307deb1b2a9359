package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/export"
	applog "github.com/privatep88/Petty-Cash/internal/log"
	"github.com/privatep88/Petty-Cash/internal/services"
)

// periodResponse is returned by every period read and edit. Entry is set
// only when a row was added.
type periodResponse struct {
	services.PeriodView
	Entry *core.ExpenseEntry `json:"entry,omitempty"`
}

type metaResponse struct {
	Months       []string     `json:"months"`
	Years        []string     `json:"years"`
	DefaultYear  string       `json:"defaultYear"`
	DefaultMonth string       `json:"defaultMonth"`
	InitialRows  int          `json:"initialRows"`
	Fields       []core.Field `json:"fields"`
	CSVHeaders   []string     `json:"csvHeaders"`
}

// indexData feeds templates/index.html.
type indexData struct {
	View   services.PeriodView
	Months []string
	Years  []string
	Fields []core.Field
}

var editableFields = []core.Field{
	core.FieldRequestNumber,
	core.FieldRequestType,
	core.FieldSubject,
	core.FieldExecutionDate,
	core.FieldCost,
	core.FieldNotes,
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once the store has been restored. A store that
// discarded unreadable data is still ready; the check says so.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil || !s.store.Loaded() {
		checks["store"] = "loading"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = s.store.LoadStatus()
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes counters in Prometheus text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	stored := 0
	if s.store != nil {
		stored = len(s.store.Keys())
	}

	var b bytes.Buffer
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Requests answered with a 5xx status", traceMetrics.ServerErrors)
	metric("http_request_duration_avg_seconds", "gauge", "Mean request latency", traceMetrics.AverageResponseTime().Seconds())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)
	metric("periods_stored", "gauge", "Periods saved in the store", stored)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	year, month := queryPeriod(r)
	view, err := s.svc.Period(r.Context(), year, month)
	if err != nil {
		// A bad picker value falls back to the default period.
		view, err = s.svc.Period(r.Context(), core.DefaultYear, core.DefaultMonth)
	}
	if err != nil {
		s.writeError(w, r, applog.OpRender, err)
		return
	}

	var buf bytes.Buffer
	data := indexData{View: view, Months: core.Months(), Years: core.Years(), Fields: editableFields}
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(metaResponse{
		Months:       core.Months(),
		Years:        core.Years(),
		DefaultYear:  core.DefaultYear,
		DefaultMonth: core.DefaultMonth,
		InitialRows:  core.InitialRows,
		Fields:       editableFields,
		CSVHeaders:   export.Headers(),
	}).Write(w)
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	year, month := pathPeriod(r)
	view, err := s.svc.Period(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpLoad, err)
		return
	}
	NewResponse().JSON(periodResponse{PeriodView: view}).Write(w)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	year, month := pathPeriod(r)
	_, entry, err := s.svc.AddRow(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpAddRow, err)
		return
	}
	s.respondPeriod(w, r, http.StatusCreated, year, month, &entry)
}

// handleUpdateEntry expects {"field": "<column>", "value": "<text>"}.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	year, month := pathPeriod(r)
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	if !body.Has("field") {
		BadRequestError("missing field").Write(w)
		return
	}

	_, err := s.svc.UpdateField(r.Context(), year, month, r.PathValue("id"), body.Get("field"), body.Value("value"))
	if err != nil {
		s.writeError(w, r, applog.OpUpdateRow, err)
		return
	}
	s.respondPeriod(w, r, http.StatusOK, year, month, nil)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	year, month := pathPeriod(r)
	if _, err := s.svc.DeleteRow(r.Context(), year, month, r.PathValue("id")); err != nil {
		s.writeError(w, r, applog.OpDeleteRow, err)
		return
	}
	s.respondPeriod(w, r, http.StatusOK, year, month, nil)
}

// handleSetNotes expects {"notes": "<text>"}.
func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	year, month := pathPeriod(r)
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	if !body.Has("notes") {
		BadRequestError("missing notes").Write(w)
		return
	}

	if _, err := s.svc.SetGeneralNotes(r.Context(), year, month, body.Value("notes")); err != nil {
		s.writeError(w, r, applog.OpSetNotes, err)
		return
	}
	s.respondPeriod(w, r, http.StatusOK, year, month, nil)
}

func (s *Server) handleYearTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.svc.YearTotals(r.Context(), r.PathValue("year"))
	if err != nil {
		s.writeError(w, r, applog.OpAggregate, err)
		return
	}
	NewResponse().JSON(totals).Write(w)
}

// handleExport streams the CSV report of one period as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	year, month, err := services.Normalize(pathPeriod(r))
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Export(r.Context(), year, month, &buf); err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(year, month, export.Filename(year, month)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseBody reads the edit payload, answering the error itself on failure.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			PayloadTooLargeError(err.Error()).Write(w)
		} else {
			BadRequestError("malformed request body").Write(w)
		}
		return nil, false
	}
	return p, true
}
