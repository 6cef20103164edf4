package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindMember  Kind = "member"
	KindPayment Kind = "payment"
	KindExpense Kind = "expense"
)

type (
	// Kind names one of the three collections held by a Document.
	Kind string

	Member struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Payment is money paid into the pot by a member.
	Payment struct {
		ID        string    `json:"id"`
		MemberID  string    `json:"member_id"`
		Amount    Amount    `json:"amount"`
		CreatedAt time.Time `json:"created_at,omitzero"`
		UpdatedAt time.Time `json:"updated_at,omitzero"`
	}

	// Expense is money spent from the pot.
	Expense struct {
		ID        string    `json:"id"`
		Summary   string    `json:"summary"`
		Amount    Amount    `json:"amount"`
		CreatedAt time.Time `json:"created_at,omitzero"`
		UpdatedAt time.Time `json:"updated_at,omitzero"`
	}

	// Document is the whole persisted state. It is always read and written in one piece.
	Document struct {
		Members  []Member  `json:"members"`
		Payments []Payment `json:"payments"`
		Expenses []Expense `json:"expenses"`
	}
)

var (
	ErrEmptyName     = errors.New("empty member name")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptySummary  = errors.New("empty expense summary")
	ErrUnknownKind   = errors.New("unknown entity kind")
)

// ParseKind accepts both singular and plural collection names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member", "members":
		return KindMember, nil
	case "payment", "payments":
		return KindPayment, nil
	case "expense", "expenses":
		return KindExpense, nil
	}
	return "", ErrUnknownKind
}

// Label returns the capitalized kind name used in user notifications.
func (k Kind) Label() string {
	switch k {
	case KindMember:
		return "Member"
	case KindPayment:
		return "Payment"
	case KindExpense:
		return "Expense"
	}
	return string(k)
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Validate only checks that an amount was entered; the sign is not enforced.
func (p Payment) Validate() error {
	if p.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Summary) == "" {
		return ErrEmptySummary
	}
	if e.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// NewDocument returns a document with empty, non-nil collections so it encodes as
// {"members":[],"payments":[],"expenses":[]}.
func NewDocument() Document {
	return Document{
		Members:  []Member{},
		Payments: []Payment{},
		Expenses: []Expense{},
	}
}

// Clone returns a copy that shares no backing arrays with d.
func (d Document) Clone() Document {
	out := Document{
		Members:  make([]Member, len(d.Members)),
		Payments: make([]Payment, len(d.Payments)),
		Expenses: make([]Expense, len(d.Expenses)),
	}
	copy(out.Members, d.Members)
	copy(out.Payments, d.Payments)
	copy(out.Expenses, d.Expenses)
	return out
}

// Len returns the size of the collection named by kind, or -1 for an unknown kind.
func (d Document) Len(kind Kind) int {
	switch kind {
	case KindMember:
		return len(d.Members)
	case KindPayment:
		return len(d.Payments)
	case KindExpense:
		return len(d.Expenses)
	}
	return -1
}

// IndexOf returns the position of the entity with the given id, or -1.
func (d Document) IndexOf(kind Kind, id string) int {
	switch kind {
	case KindMember:
		for i, m := range d.Members {
			if m.ID == id {
				return i
			}
		}
	case KindPayment:
		for i, p := range d.Payments {
			if p.ID == id {
				return i
			}
		}
	case KindExpense:
		for i, e := range d.Expenses {
			if e.ID == id {
				return i
			}
		}
	}
	return -1
}

// MemberName resolves a member id to its display name.
func (d Document) MemberName(id string) (string, bool) {
	if i := d.IndexOf(KindMember, id); i >= 0 {
		return d.Members[i].Name, true
	}
	return "", false
}
