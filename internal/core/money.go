// Package core provides cost parsing and handling utilities.
//
// This file contains the Cost value used by expense entries: a decimal
// amount that may also be left blank by the user.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cost is a decimal amount or empty. Its JSON form is a bare number or "".
type Cost struct {
	amount decimal.Decimal
	set    bool
}

// digitFolder maps Arabic-Indic digits and the Arabic decimal separator
// to their ASCII forms.
var digitFolder = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".",
)

// Amounts outside these bounds are treated as not a number. Formatting a
// decimal with a huge exponent allocates every digit.
const (
	maxCostExponent = 20
	maxCostDigits   = 30
)

// EmptyCost returns a blank cost.
func EmptyCost() Cost {
	return Cost{}
}

// NewCost wraps a decimal amount.
func NewCost(d decimal.Decimal) Cost {
	return Cost{amount: d, set: true}
}

// CostFromInt is a shorthand for whole amounts.
func CostFromInt(v int64) Cost {
	return NewCost(decimal.NewFromInt(v))
}

// ParseCost coerces free-form input into a Cost.
//
// Blank input and anything that is not a number yield an empty cost; input
// is never rejected. Both dot (12.5) and comma (12,5) decimal separators are
// accepted, as are Arabic-Indic digits.
//
// Examples:
//   ParseCost("150")  -> 150
//   ParseCost("12,5") -> 12.5
//   ParseCost("١٥٠")  -> 150
//   ParseCost("abc")  -> empty
//   ParseCost("1e999999999") -> empty
func ParseCost(s string) Cost {
	s = strings.TrimSpace(digitFolder.Replace(s))
	if s == "" {
		return EmptyCost()
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return EmptyCost()
	}
	return boundedCost(d)
}

func boundedCost(d decimal.Decimal) Cost {
	exp := d.Exponent()
	if exp > maxCostExponent || exp < -maxCostExponent || d.NumDigits() > maxCostDigits {
		return EmptyCost()
	}
	return NewCost(d)
}

// IsEmpty reports whether no amount was entered.
func (c Cost) IsEmpty() bool {
	return !c.set
}

// Decimal returns the amount, or zero when empty.
func (c Cost) Decimal() decimal.Decimal {
	if !c.set {
		return decimal.Zero
	}
	return c.amount
}

// String returns the amount in its shortest form, or "" when empty.
func (c Cost) String() string {
	if !c.set {
		return ""
	}
	return c.amount.String()
}

// Equal compares by value, so 150 and 150.00 are equal.
func (c Cost) Equal(o Cost) bool {
	if c.set != o.set {
		return false
	}
	return !c.set || c.amount.Equal(o.amount)
}

func (c Cost) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte(`""`), nil
	}
	return []byte(c.amount.String()), nil
}

// UnmarshalJSON accepts a number, "" or null. Quoted numbers are tolerated.
// Out-of-range numbers decode as empty, like ParseCost.
func (c *Cost) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = EmptyCost()
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode cost: %w", err)
		}
		*c = ParseCost(s)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("decode cost %q: %w", data, err)
	}
	*c = boundedCost(d)
	return nil
}
