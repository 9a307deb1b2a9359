package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func entry(reqNo, subject, cost string) ExpenseEntry {
	e := NewBlankEntry(1)
	e.RequestNumber = reqNo
	e.Subject = subject
	e.Cost = ParseCost(cost)
	return e
}

func TestHasContent(t *testing.T) {
	cases := []struct {
		e    ExpenseEntry
		want bool
	}{
		{entry("", "", ""), false},
		{entry("  ", " ", ""), false},
		{entry("R-1", "", ""), true},
		{entry("", "وقود", ""), true},
		{entry("", "", "0"), true},
		{ExpenseEntry{Notes: "only notes"}, false},
	}
	for i, tc := range cases {
		if got := tc.e.HasContent(); got != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, got)
		}
	}
}

func TestPeriodTotal(t *testing.T) {
	entries := []ExpenseEntry{entry("", "", "100"), entry("", "", ""), entry("", "", "12.5"), entry("", "", "abc")}
	if got := PeriodTotal(entries); !got.Equal(decimal.RequireFromString("112.5")) {
		t.Fatalf("unexpected total %s", got)
	}
	if !PeriodTotal(nil).IsZero() {
		t.Fatalf("empty period should total zero")
	}
}

func TestYearTotals(t *testing.T) {
	periods := Periods{
		PeriodKey("2026", "يناير"): {Entries: []ExpenseEntry{entry("1", "", "100"), entry("", "", "")}},
		PeriodKey("2026", "فبراير"): {Entries: []ExpenseEntry{entry("", "صيانة", "50.25"), entry("", "", "")}},
		PeriodKey("2027", "يناير"): {Entries: []ExpenseEntry{entry("9", "x", "1000")}},
	}

	got := YearTotals(periods, "2026")
	if !got.Cost.Equal(decimal.RequireFromString("150.25")) {
		t.Fatalf("unexpected 2026 cost %s", got.Cost)
	}
	if got.Count != 2 {
		t.Fatalf("unexpected 2026 count %d", got.Count)
	}

	got = YearTotals(periods, "2027")
	if !got.Cost.Equal(decimal.NewFromInt(1000)) || got.Count != 1 {
		t.Fatalf("unexpected 2027 totals %+v", got)
	}

	got = YearTotals(periods, "2030")
	if !got.Cost.IsZero() || got.Count != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestNullCostRowIsNotCounted(t *testing.T) {
	var e ExpenseEntry
	if err := json.Unmarshal([]byte(`{"id":"a","index":1,"cost":null}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.HasContent() {
		t.Fatalf("row with only a null cost should not count as a request")
	}
	e.Subject = "وقود"
	if !e.HasContent() {
		t.Fatalf("row with a subject should count")
	}
}
