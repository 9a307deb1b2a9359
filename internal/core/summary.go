package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Totals is the cumulative figure shown for a selected year.
type Totals struct {
	Year  string          `json:"year"`
	Cost  decimal.Decimal `json:"cost"`
	Count int             `json:"count"`
}

// HasContent reports whether the entry is a real request rather than a
// blank placeholder row.
func (e ExpenseEntry) HasContent() bool {
	return strings.TrimSpace(e.RequestNumber) != "" ||
		!e.Cost.IsEmpty() ||
		strings.TrimSpace(e.Subject) != ""
}

// PeriodTotal sums the costs of one period. Empty costs count as zero.
func PeriodTotal(entries []ExpenseEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Cost.Decimal())
	}
	return sum
}

// YearTotals aggregates every stored period whose key belongs to year.
func YearTotals(periods Periods, year string) Totals {
	t := Totals{Year: year, Cost: decimal.Zero}
	for key, p := range periods {
		if KeyYear(key) != year {
			continue
		}
		t.Cost = t.Cost.Add(PeriodTotal(p.Entries))
		for _, e := range p.Entries {
			if e.HasContent() {
				t.Count++
			}
		}
	}
	return t
}
