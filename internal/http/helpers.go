package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/periods"
)

// pathPeriod returns the raw year and month path segments.
func pathPeriod(r *http.Request) (year, month string) {
	return r.PathValue("year"), r.PathValue("month")
}

// queryPeriod reads the period picker from the query string, falling back
// to the default period.
func queryPeriod(r *http.Request) (year, month string) {
	year, month = core.DefaultYear, core.DefaultMonth
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		year = v
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		month = v
	}
	return year, month
}

// formatCost renders a total with two decimals, as shown in the summary.
func formatCost(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// sanitizeInput drops control characters other than tab and line breaks.
// Surrounding whitespace is kept.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// contentDisposition names the attachment with an ASCII fallback and the
// UTF-8 Arabic filename for clients that understand RFC 5987.
func contentDisposition(year, month, filename string) string {
	fallback := fmt.Sprintf("petty_cash_%s_%02d.csv", year, core.MonthNumber(month))
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(filename))
}

// errorStatus maps domain errors to an HTTP status and a client message.
// Persistence failures are reported without their cause.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrMalformedKey):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrEntryNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, periods.ErrPersist):
		return http.StatusInternalServerError, "could not save changes"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
