package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/privatep88/Petty-Cash/internal/cache"
	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/export"
	"github.com/privatep88/Petty-Cash/internal/periods"
	"github.com/privatep88/Petty-Cash/internal/services"
	"github.com/privatep88/Petty-Cash/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *storage.MemorySlot) {
	t.Helper()
	slot := storage.NewMemorySlot(nil)
	store, err := periods.Open(context.Background(), slot, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := services.NewPeriodService(store, nil, cache.NewLRUCache[core.Totals](16, time.Minute), nil)
	srv := NewServer(":0", svc, store, nil, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, slot
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodePeriod(t *testing.T, rr *httptest.ResponseRecorder) periodResponse {
	t.Helper()
	var resp periodResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "سجل المصروفات النثرية") {
		t.Fatalf("index body missing heading")
	}
	if n := strings.Count(body, "<tr data-id="); n != core.InitialRows {
		t.Fatalf("index rendered %d rows, want %d", n, core.InitialRows)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexPicksPeriodFromQuery(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/?year=2027&month=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `data-year="2027"`) {
		t.Fatalf("index should render the requested year")
	}

	rr = do(t, srv, http.MethodGet, "/?month=nope", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `data-year="2026"`) {
		t.Fatalf("invalid picker should fall back to the default period, got %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/static/app.js", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("static asset status=%d cache=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}
}

func TestGetDefaultPeriod(t *testing.T) {
	srv, slot := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/periods/2026/3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodePeriod(t, rr)
	if resp.Month != "مارس" || resp.Key != "2026-مارس" || resp.Saved {
		t.Fatalf("unexpected view: %+v", resp.PeriodView)
	}
	if len(resp.Period.Entries) != core.InitialRows {
		t.Fatalf("entries = %d", len(resp.Period.Entries))
	}
	if slot.Saves() != 0 {
		t.Fatalf("reading must not persist")
	}

	again := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/3", ""))
	if again.Period.Entries[0].ID != resp.Period.Entries[0].ID {
		t.Fatalf("entry ids should be stable across reads")
	}
}

func TestEditScenario(t *testing.T) {
	srv, slot := newTestServer(t, Options{})
	base := "/api/periods/2026/1"

	first := decodePeriod(t, do(t, srv, http.MethodGet, base, ""))
	id := first.Period.Entries[0].ID

	rr := do(t, srv, http.MethodPatch, base+"/entries/"+id, `{"field":"cost","value":150}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodePeriod(t, rr)
	if resp.PeriodTotal.String() != "150" || resp.YearTotals.Count != 1 || !resp.Saved {
		t.Fatalf("unexpected totals: %+v", resp.PeriodView)
	}

	rr = do(t, srv, http.MethodPost, base+"/entries", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("post status=%d", rr.Code)
	}
	resp = decodePeriod(t, rr)
	if resp.Entry == nil || resp.Entry.Index != core.InitialRows+1 {
		t.Fatalf("unexpected added entry: %+v", resp.Entry)
	}

	rr = do(t, srv, http.MethodDelete, base+"/entries/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	resp = decodePeriod(t, rr)
	if len(resp.Period.Entries) != core.InitialRows {
		t.Fatalf("entries = %d", len(resp.Period.Entries))
	}
	for i, e := range resp.Period.Entries {
		if e.Index != i+1 {
			t.Fatalf("entry %d has index %d", i, e.Index)
		}
	}
	if !resp.PeriodTotal.IsZero() {
		t.Fatalf("total after delete = %s", resp.PeriodTotal)
	}

	rr = do(t, srv, http.MethodPut, base+"/notes", `{"notes":"تم التدقيق\n"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("notes status=%d", rr.Code)
	}
	if got := decodePeriod(t, rr).Period.GeneralNotes; got != "تم التدقيق\n" {
		t.Fatalf("notes = %q", got)
	}

	if slot.Saves() != 4 {
		t.Fatalf("saves = %d, want 4", slot.Saves())
	}
}

func TestFormEncodedEdit(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	id := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/2", "")).Period.Entries[1].ID

	req := httptest.NewRequest(http.MethodPatch, "/api/periods/2026/2/entries/"+id, strings.NewReader("field=subject&value=%D9%82%D8%B1%D8%B7%D8%A7%D8%B3%D9%8A%D8%A9"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodePeriod(t, rr).Period.Entries[1].Subject; got != "قرطاسية" {
		t.Fatalf("subject = %q", got)
	}
}

func TestYearTotals(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, m := range []string{"1", "2"} {
		id := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/"+m, "")).Period.Entries[0].ID
		if rr := do(t, srv, http.MethodPatch, "/api/periods/2026/"+m+"/entries/"+id, `{"field":"cost","value":"10.5"}`); rr.Code != http.StatusOK {
			t.Fatalf("patch status=%d", rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/years/2026/totals", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var totals core.Totals
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.Year != "2026" || totals.Count != 2 || totals.Cost.String() != "21" {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	id := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/1", "")).Period.Entries[0].ID

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"invalid month", http.MethodGet, "/api/periods/2026/13", "", http.StatusBadRequest},
		{"invalid year", http.MethodGet, "/api/periods/abc/1", "", http.StatusBadRequest},
		{"invalid totals year", http.MethodGet, "/api/years/0/totals", "", http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/periods/2026/1/entries/" + id, `{"field":"index","value":"9"}`, http.StatusBadRequest},
		{"missing field", http.MethodPatch, "/api/periods/2026/1/entries/" + id, `{"value":"9"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPatch, "/api/periods/2026/1/entries/" + id, `{"field":`, http.StatusBadRequest},
		{"unknown entry", http.MethodPatch, "/api/periods/2026/1/entries/missing", `{"field":"cost","value":"1"}`, http.StatusNotFound},
		{"delete unknown entry", http.MethodDelete, "/api/periods/2026/1/entries/missing", "", http.StatusNotFound},
		{"missing notes", http.MethodPut, "/api/periods/2026/1/notes", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/periods/2026/1/entries", "", http.StatusMethodNotAllowed},
		{"export invalid month", http.MethodGet, "/export/2026/13", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, tt.body)
			if rr.Code != tt.code {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tt.code, rr.Body.String())
			}
			if tt.code != http.StatusMethodNotAllowed {
				var body errorBody
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
					t.Fatalf("expected JSON error body, got %q", rr.Body.String())
				}
			}
		})
	}
}

func TestPersistFailureIsServerError(t *testing.T) {
	srv, slot := newTestServer(t, Options{})
	slot.FailSaves(errors.New("disk full"))

	rr := do(t, srv, http.MethodPost, "/api/periods/2026/1/entries", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk full") {
		t.Fatalf("storage errors must not leak to clients: %s", rr.Body.String())
	}

	resp := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/1", ""))
	if resp.Saved || len(resp.Period.Entries) != core.InitialRows {
		t.Fatalf("failed add must not change the period: %+v", resp.PeriodView)
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	id := decodePeriod(t, do(t, srv, http.MethodGet, "/api/periods/2026/1", "")).Period.Entries[0].ID
	do(t, srv, http.MethodPatch, "/api/periods/2026/1/entries/"+id, `{"field":"subject","value":"حبر, طابعة"}`)

	rr := do(t, srv, http.MethodGet, "/export/2026/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != export.ContentType {
		t.Fatalf("Content-Type = %q", got)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `filename="petty_cash_2026_01.csv"`) || !strings.Contains(cd, "filename*=UTF-8''") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, export.BOM) || !strings.Contains(body, `"حبر, طابعة"`) {
		t.Fatalf("unexpected CSV body %q", body)
	}
}

func TestMetaAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/meta", "")
	var meta metaResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if len(meta.Months) != 12 || meta.Months[0] != core.DefaultMonth || meta.InitialRows != core.InitialRows {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if len(meta.Fields) != 6 || len(meta.CSVHeaders) != 7 {
		t.Fatalf("unexpected columns: %+v", meta)
	}

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	for _, want := range []string{"http_requests_total 1", "periods_stored 0", "rate_limit_hits_total 0"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("metrics missing %q:\n%s", want, rr.Body.String())
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	srv, _ := newTestServer(t, Options{RequestsPerMinute: 2})

	rr := do(t, srv, http.MethodGet, "/api/periods/2026/1", "")
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing security or trace headers: %v", rr.Header())
	}

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/periods/2026/1/entries", ""); rr.Code != http.StatusCreated {
			t.Fatalf("post %d status=%d", i+1, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodPost, "/api/periods/2026/1/entries", ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third post status=%d, want 429", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/periods/2026/1", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not rate limited, got %d", rr.Code)
	}

	if rr := do(t, srv, "TRACE", "/", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("TRACE status=%d", rr.Code)
	}
}
