package ledger

import (
	"context"
	"errors"

	"ledger/internal/core"
	"ledger/internal/log"
)

// PaymentInput holds the editable fields of a payment.
type PaymentInput struct {
	MemberID string
	Amount   core.Amount
}

func (s *Store) AddPayment(ctx context.Context, in PaymentInput) (core.Payment, error) {
	p := core.Payment{MemberID: in.MemberID, Amount: in.Amount}
	if err := p.Validate(); err != nil {
		return core.Payment{}, s.reject(MsgAmountRequired, err)
	}
	p.ID = s.newID()
	p.CreatedAt = s.now().UTC()

	err := s.commit(func(doc *core.Document) error {
		if doc.IndexOf(core.KindMember, p.MemberID) < 0 {
			return ErrUnknownMember
		}
		doc.Payments = append(doc.Payments, p)
		return nil
	})
	if err != nil {
		return core.Payment{}, s.reject(MsgUnknownMember, err)
	}
	return p, s.persist(ctx, log.OpCreate, core.KindPayment, p.ID)
}

// UpdatePayment overwrites the editable fields and keeps the id and creation time.
func (s *Store) UpdatePayment(ctx context.Context, id string, in PaymentInput) (core.Payment, error) {
	p := core.Payment{ID: id, MemberID: in.MemberID, Amount: in.Amount}
	if err := p.Validate(); err != nil {
		return core.Payment{}, s.reject(MsgAmountRequired, err)
	}

	err := s.commit(func(doc *core.Document) error {
		i := doc.IndexOf(core.KindPayment, id)
		if i < 0 {
			return ErrNotFound
		}
		if doc.IndexOf(core.KindMember, p.MemberID) < 0 {
			return ErrUnknownMember
		}
		p.CreatedAt = doc.Payments[i].CreatedAt
		p.UpdatedAt = s.now().UTC()
		doc.Payments[i] = p
		return nil
	})
	switch {
	case errors.Is(err, ErrUnknownMember):
		return core.Payment{}, s.reject(MsgUnknownMember, err)
	case err != nil:
		return core.Payment{}, err
	}
	return p, s.persist(ctx, log.OpUpdate, core.KindPayment, id)
}
