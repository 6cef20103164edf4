package core

import "strconv"

// Normalize upgrades a document written by older clients in place and reports whether
// anything changed.
//
// Older documents have no entity ids and reference members by their position in the
// members array, stored as text ("0", "1", ...). Missing ids are generated with newID,
// and a payment member_id that is a valid position but not a known member id is rewritten
// to the id of the member at that position. Nil collections become empty ones.
func (d *Document) Normalize(newID func() string) bool {
	changed := false

	if d.Members == nil {
		d.Members = []Member{}
	}
	if d.Payments == nil {
		d.Payments = []Payment{}
	}
	if d.Expenses == nil {
		d.Expenses = []Expense{}
	}

	for i := range d.Members {
		if d.Members[i].ID == "" {
			d.Members[i].ID = newID()
			changed = true
		}
	}

	known := make(map[string]struct{}, len(d.Members))
	for _, m := range d.Members {
		known[m.ID] = struct{}{}
	}

	for i := range d.Payments {
		p := &d.Payments[i]
		if p.ID == "" {
			p.ID = newID()
			changed = true
		}
		if _, ok := known[p.MemberID]; ok {
			continue
		}
		idx, err := strconv.Atoi(p.MemberID)
		if err != nil || idx < 0 || idx >= len(d.Members) {
			continue
		}
		p.MemberID = d.Members[idx].ID
		changed = true
	}

	for i := range d.Expenses {
		if d.Expenses[i].ID == "" {
			d.Expenses[i].ID = newID()
			changed = true
		}
	}

	return changed
}
