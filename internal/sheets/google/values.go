package google

import "ledger/internal/core"

// MemberValues returns the Members tab: a header row, then one row per member.
func MemberValues(doc core.Document) [][]any {
	out := [][]any{{"#", "ID", "Name"}}
	for _, r := range core.MemberRows(doc) {
		out = append(out, []any{r.Row, r.ID, r.Name})
	}
	return out
}

// PaymentValues writes amounts as numbers so the sheet can sum them.
func PaymentValues(doc core.Document) [][]any {
	out := [][]any{{"#", "ID", "Member", "Amount", "Created"}}
	for i, r := range core.PaymentRows(doc) {
		out = append(out, []any{r.Row, r.ID, r.Member, doc.Payments[i].Amount.Decimal().InexactFloat64(), r.Created})
	}
	return out
}

func ExpenseValues(doc core.Document) [][]any {
	out := [][]any{{"#", "ID", "Summary", "Amount", "Created"}}
	for i, r := range core.ExpenseRows(doc) {
		out = append(out, []any{r.Row, r.ID, r.Summary, doc.Expenses[i].Amount.Decimal().InexactFloat64(), r.Created})
	}
	return out
}
