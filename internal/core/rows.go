package core

// UnknownMember is shown for payments whose member was deleted.
const UnknownMember = "Unknown"

type (
	MemberRow struct {
		Row  int    `json:"row"`
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	PaymentRow struct {
		Row      int    `json:"row"`
		ID       string `json:"id"`
		MemberID string `json:"member_id"`
		Member   string `json:"member"`
		Amount   string `json:"amount"`
		Created  string `json:"created"`
	}

	ExpenseRow struct {
		Row     int    `json:"row"`
		ID      string `json:"id"`
		Summary string `json:"summary"`
		Amount  string `json:"amount"`
		Created string `json:"created"`
	}
)

// MemberRows returns the members table; Row is the 1-based position.
func MemberRows(d Document) []MemberRow {
	rows := make([]MemberRow, 0, len(d.Members))
	for i, m := range d.Members {
		rows = append(rows, MemberRow{Row: i + 1, ID: m.ID, Name: m.Name})
	}
	return rows
}

func PaymentRows(d Document) []PaymentRow {
	rows := make([]PaymentRow, 0, len(d.Payments))
	for i, p := range d.Payments {
		name, ok := d.MemberName(p.MemberID)
		if !ok {
			name = UnknownMember
		}
		rows = append(rows, PaymentRow{
			Row:      i + 1,
			ID:       p.ID,
			MemberID: p.MemberID,
			Member:   name,
			Amount:   FormatAmount(p.Amount.Decimal()),
			Created:  FormatDate(p.CreatedAt),
		})
	}
	return rows
}

func ExpenseRows(d Document) []ExpenseRow {
	rows := make([]ExpenseRow, 0, len(d.Expenses))
	for i, e := range d.Expenses {
		rows = append(rows, ExpenseRow{
			Row:     i + 1,
			ID:      e.ID,
			Summary: e.Summary,
			Amount:  FormatAmount(e.Amount.Decimal()),
			Created: FormatDate(e.CreatedAt),
		})
	}
	return rows
}
