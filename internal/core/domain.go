package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// InitialRows is the number of blank entries a fresh period starts with.
	InitialRows = 4

	DefaultYear  = "2026"
	DefaultMonth = "يناير"

	firstPickerYear = 2026
	lastPickerYear  = 2050
)

// monthNames lists the Arabic month names in calendar order.
var monthNames = [12]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

type (
	// Field names an editable column of an ExpenseEntry.
	Field string

	ExpenseEntry struct {
		ID            string `json:"id"`
		Index         int    `json:"index"`
		RequestNumber string `json:"requestNumber"`
		RequestType   string `json:"requestType"`
		Subject       string `json:"subject"`
		ExecutionDate string `json:"executionDate"`
		Cost          Cost   `json:"cost"`
		Notes         string `json:"notes"`
	}

	// PeriodData holds everything recorded for one calendar month.
	PeriodData struct {
		Entries      []ExpenseEntry `json:"entries"`
		GeneralNotes string         `json:"generalNotes"`
	}

	// Periods maps a period key ("<year>-<month>") to its data.
	Periods map[string]PeriodData
)

const (
	FieldRequestNumber Field = "requestNumber"
	FieldRequestType   Field = "requestType"
	FieldSubject       Field = "subject"
	FieldExecutionDate Field = "executionDate"
	FieldCost          Field = "cost"
	FieldNotes         Field = "notes"
)

var (
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
	ErrUnknownField  = errors.New("unknown field")
	ErrEntryNotFound = errors.New("entry not found")
	ErrMalformedKey  = errors.New("malformed period key")
)

// Months returns the Arabic month names in calendar order.
func Months() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames[:])
	return out
}

// Years returns the years offered by the period picker.
func Years() []string {
	out := make([]string, 0, lastPickerYear-firstPickerYear+1)
	for y := firstPickerYear; y <= lastPickerYear; y++ {
		out = append(out, strconv.Itoa(y))
	}
	return out
}

// ParseMonth accepts an Arabic month name or a month number (1-12) and
// returns the Arabic name used in period keys.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, name := range monthNames {
		if s == name {
			return name, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return monthNames[n-1], nil
	}
	return "", ErrInvalidMonth
}

// MonthNumber returns 1-12 for an Arabic month name, 0 if unknown.
func MonthNumber(name string) int {
	for i, m := range monthNames {
		if m == name {
			return i + 1
		}
	}
	return 0
}

// ParseYear normalizes a year string. Any year between 1 and 9999 is accepted.
func ParseYear(s string) (string, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1 || y > 9999 {
		return "", ErrInvalidYear
	}
	return strconv.Itoa(y), nil
}

// PeriodKey builds the store key for a year and Arabic month name.
func PeriodKey(year, month string) string {
	return year + "-" + month
}

// KeyYear returns the year segment of a period key.
func KeyYear(key string) string {
	year, _, _ := strings.Cut(key, "-")
	return year
}

// SplitKey returns the year and month of a period key.
func SplitKey(key string) (year, month string, err error) {
	year, month, ok := strings.Cut(key, "-")
	if !ok || year == "" || month == "" {
		return "", "", ErrMalformedKey
	}
	return year, month, nil
}

// ParseField validates an editable column name.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.TrimSpace(s)); f {
	case FieldRequestNumber, FieldRequestType, FieldSubject, FieldExecutionDate, FieldCost, FieldNotes:
		return f, nil
	default:
		return "", ErrUnknownField
	}
}

// NewEntryID returns a fresh opaque entry identifier.
func NewEntryID() string {
	return uuid.NewString()
}

// NewBlankEntry returns an entry with only its id and index set.
func NewBlankEntry(index int) ExpenseEntry {
	return ExpenseEntry{
		ID:    NewEntryID(),
		Index: index,
		Cost:  EmptyCost(),
	}
}

// DefaultPeriod returns the period shown for a month that has never been edited.
func DefaultPeriod() PeriodData {
	entries := make([]ExpenseEntry, InitialRows)
	for i := range entries {
		entries[i] = NewBlankEntry(i + 1)
	}
	return PeriodData{Entries: entries}
}

// With returns a copy of the entry with one field replaced. Cost input is
// coerced with ParseCost; every other field is stored verbatim.
func (e ExpenseEntry) With(f Field, value string) (ExpenseEntry, error) {
	switch f {
	case FieldRequestNumber:
		e.RequestNumber = value
	case FieldRequestType:
		e.RequestType = value
	case FieldSubject:
		e.Subject = value
	case FieldExecutionDate:
		e.ExecutionDate = value
	case FieldCost:
		e.Cost = ParseCost(value)
	case FieldNotes:
		e.Notes = value
	default:
		return e, ErrUnknownField
	}
	return e, nil
}

// Equal reports whether two entries hold the same values.
func (e ExpenseEntry) Equal(o ExpenseEntry) bool {
	return e.ID == o.ID &&
		e.Index == o.Index &&
		e.RequestNumber == o.RequestNumber &&
		e.RequestType == o.RequestType &&
		e.Subject == o.Subject &&
		e.ExecutionDate == o.ExecutionDate &&
		e.Cost.Equal(o.Cost) &&
		e.Notes == o.Notes
}

// Clone returns a deep copy. A nil entry list becomes an empty one.
func (p PeriodData) Clone() PeriodData {
	entries := make([]ExpenseEntry, len(p.Entries))
	copy(entries, p.Entries)
	return PeriodData{Entries: entries, GeneralNotes: p.GeneralNotes}
}

// Equal reports structural equality.
func (p PeriodData) Equal(o PeriodData) bool {
	if p.GeneralNotes != o.GeneralNotes || len(p.Entries) != len(o.Entries) {
		return false
	}
	for i := range p.Entries {
		if !p.Entries[i].Equal(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Reindexed returns a copy whose entry indices run 1..N in slice order.
func (p PeriodData) Reindexed() PeriodData {
	out := p.Clone()
	for i := range out.Entries {
		out.Entries[i].Index = i + 1
	}
	return out
}

// Clone returns a deep copy of every period.
func (ps Periods) Clone() Periods {
	out := make(Periods, len(ps))
	for k, v := range ps {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports structural equality of two mappings.
func (ps Periods) Equal(o Periods) bool {
	if len(ps) != len(o) {
		return false
	}
	for k, v := range ps {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
