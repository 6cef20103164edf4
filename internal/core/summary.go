package core

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Summary holds the dashboard totals derived from a Document.
type Summary struct {
	Members       int
	TotalPayments decimal.Decimal
	TotalExpenses decimal.Decimal
	Balance       decimal.Decimal
	// Malformed counts stored amounts that were not numbers and were summed as zero.
	Malformed int
}

// Summarize recomputes the totals from scratch; collections are small.
func Summarize(d Document) Summary {
	s := Summary{
		Members:       len(d.Members),
		TotalPayments: decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, p := range d.Payments {
		if p.Amount.Malformed() {
			s.Malformed++
		}
		s.TotalPayments = s.TotalPayments.Add(p.Amount.Decimal())
	}
	for _, e := range d.Expenses {
		if e.Amount.Malformed() {
			s.Malformed++
		}
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount.Decimal())
	}
	s.Balance = s.TotalPayments.Sub(s.TotalExpenses)
	return s
}

// FormatAmount renders a value with en-US digit grouping and at most three fraction
// digits, without a currency symbol: 30000 -> "30,000", 1234.5 -> "1,234.5".
func FormatAmount(v decimal.Decimal) string {
	p := message.NewPrinter(language.AmericanEnglish)
	return p.Sprintf("%v", number.Decimal(v.InexactFloat64(), number.MaxFractionDigits(3)))
}

// FormatDate renders a creation date for the transaction tables.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("January 2, 2006")
}
