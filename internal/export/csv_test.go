package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/privatep88/Petty-Cash/internal/core"
)

func TestWriteCSV(t *testing.T) {
	p := core.PeriodData{Entries: []core.ExpenseEntry{
		{ID: "a", Index: 1, RequestNumber: "R-1", RequestType: "شراء", Subject: `ورق "A4"`, ExecutionDate: "2026-01-05", Cost: core.ParseCost("150"), Notes: "سطر\nثاني"},
		{ID: "b", Index: 2, Cost: core.EmptyCost()},
	}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, p); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := BOM +
		"م,رقم الطلب,نوع الطلب,الموضوع,تاريخ التنفيذ,التكلفة,الملاحظات\n" +
		`1,"R-1","شراء","ورق ""A4""","2026-01-05",150,"سطر ثاني"` + "\n" +
		`2,"","","","",,""`
	if got := buf.String(); got != want {
		t.Fatalf("csv mismatch\n got %q\nwant %q", got, want)
	}
}

func TestWriteCSVEmptyPeriod(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, core.PeriodData{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), BOM+"م,") || strings.Contains(buf.String(), "\n") {
		t.Fatalf("expected header line only, got %q", buf.String())
	}
}

func TestWriteCSVDecimalCost(t *testing.T) {
	p := core.PeriodData{Entries: []core.ExpenseEntry{{Index: 1, Cost: core.ParseCost("12,5")}}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(buf.String(), `"",12.5,""`) {
		t.Fatalf("unexpected row: %q", buf.String())
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("2026", "مارس"); got != "تقرير_مصروفات_مارس_2026.csv" {
		t.Fatalf("filename = %q", got)
	}
}

func TestRows(t *testing.T) {
	p := core.PeriodData{Entries: []core.ExpenseEntry{{Index: 1, Subject: "a\nb", Cost: core.CostFromInt(3)}}}
	rows := Rows(p)
	if len(rows) != 1 || len(rows[0]) != len(Headers()) {
		t.Fatalf("unexpected rows: %q", rows)
	}
	if rows[0][3] != "a\nb" || rows[0][5] != "3" {
		t.Fatalf("rows should keep raw values: %q", rows[0])
	}
}
