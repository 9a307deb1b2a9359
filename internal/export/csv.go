// Package export renders a period as the spreadsheet-friendly report users
// download or mirror to Google Sheets.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/privatep88/Petty-Cash/internal/core"
)

const (
	// BOM lets spreadsheet software detect UTF-8 for the Arabic text.
	BOM = "\uFEFF"

	ContentType = "text/csv; charset=utf-8"
)

var headers = []string{
	"م",
	"رقم الطلب",
	"نوع الطلب",
	"الموضوع",
	"تاريخ التنفيذ",
	"التكلفة",
	"الملاحظات",
}

// Headers returns the report column titles.
func Headers() []string {
	out := make([]string, len(headers))
	copy(out, headers)
	return out
}

// Filename returns the download name for a period's report.
func Filename(year, month string) string {
	return fmt.Sprintf("تقرير_مصروفات_%s_%s.csv", month, year)
}

// Rows returns the report body as plain cells, one row per entry.
func Rows(p core.PeriodData) [][]string {
	rows := make([][]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Index),
			e.RequestNumber,
			e.RequestType,
			e.Subject,
			e.ExecutionDate,
			e.Cost.String(),
			e.Notes,
		})
	}
	return rows
}

// WriteCSV writes the period as CSV: BOM, header line, then one line per
// entry joined with "\n". Text cells are always quoted; the sequence number
// and cost are written bare.
//
// encoding/csv is not used because it only quotes when needed and keeps
// embedded newlines, and readers of these files expect every text cell
// quoted on a single line.
func WriteCSV(w io.Writer, p core.PeriodData) error {
	var b strings.Builder
	b.WriteString(BOM)
	b.WriteString(strings.Join(headers, ","))

	for _, e := range p.Entries {
		b.WriteByte('\n')
		b.WriteString(strings.Join([]string{
			strconv.Itoa(e.Index),
			quote(e.RequestNumber),
			quote(e.RequestType),
			quote(e.Subject),
			quote(e.ExecutionDate),
			e.Cost.String(),
			quote(e.Notes),
		}, ","))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `"`, `""`)
	s = strings.ReplaceAll(s, "\n", " ")
	return `"` + s + `"`
}
