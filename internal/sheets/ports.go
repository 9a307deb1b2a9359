// Package sheets defines the outbound port used to mirror period reports
// to a spreadsheet.
package sheets

import (
	"context"
	"time"

	"github.com/privatep88/Petty-Cash/internal/core"
	"github.com/privatep88/Petty-Cash/internal/export"
)

// Report is a rendered period ready to be written as a table.
type Report struct {
	Year         string
	Month        string
	Headers      []string
	Rows         [][]string
	Total        string
	GeneralNotes string
	GeneratedAt  time.Time
}

// Title is the sheet tab name for the report, "<year>-<month>".
func (r Report) Title() string {
	return core.PeriodKey(r.Year, r.Month)
}

// BuildReport renders a period with the same columns as the CSV export.
func BuildReport(year, month string, p core.PeriodData) Report {
	return Report{
		Year:         year,
		Month:        month,
		Headers:      export.Headers(),
		Rows:         export.Rows(p),
		Total:        core.PeriodTotal(p.Entries).String(),
		GeneralNotes: p.GeneralNotes,
		GeneratedAt:  time.Now(),
	}
}

// ReportPublisher writes a report and returns a reference to where it landed.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r Report) (ref string, err error)
}
