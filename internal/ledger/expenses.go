package ledger

import (
	"context"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

type ExpenseInput struct {
	Summary string
	Amount  core.Amount
}

func (s *Store) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{Summary: strings.TrimSpace(in.Summary), Amount: in.Amount}
	if err := e.Validate(); err != nil {
		return core.Expense{}, s.reject(MsgAllRequired, err)
	}
	e.ID = s.newID()
	e.CreatedAt = s.now().UTC()

	_ = s.commit(func(doc *core.Document) error {
		doc.Expenses = append(doc.Expenses, e)
		return nil
	})
	return e, s.persist(ctx, log.OpCreate, core.KindExpense, e.ID)
}

func (s *Store) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	e := core.Expense{ID: id, Summary: strings.TrimSpace(in.Summary), Amount: in.Amount}
	if err := e.Validate(); err != nil {
		return core.Expense{}, s.reject(MsgAllRequired, err)
	}

	err := s.commit(func(doc *core.Document) error {
		i := doc.IndexOf(core.KindExpense, id)
		if i < 0 {
			return ErrNotFound
		}
		e.CreatedAt = doc.Expenses[i].CreatedAt
		e.UpdatedAt = s.now().UTC()
		doc.Expenses[i] = e
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	return e, s.persist(ctx, log.OpUpdate, core.KindExpense, id)
}
