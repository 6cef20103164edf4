package ledger

import (
	"context"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/notify"
)

// DeletionRequest is a pending, unconfirmed deletion.
type DeletionRequest struct {
	Token     string    `json:"token"`
	Kind      core.Kind `json:"kind"`
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestDeletion starts a deletion without changing anything. The returned token must
// be confirmed or declined; unanswered tokens expire.
func (s *Store) RequestDeletion(kind core.Kind, id string) (DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Len(kind) < 0 {
		return DeletionRequest{}, core.ErrUnknownKind
	}
	if s.doc.IndexOf(kind, id) < 0 {
		return DeletionRequest{}, ErrNotFound
	}

	now := s.now()
	s.pruneLocked(now)
	req := DeletionRequest{
		Token:     s.newID(),
		Kind:      kind,
		ID:        id,
		ExpiresAt: now.Add(s.ttl),
	}
	s.pending[req.Token] = req
	return req, nil
}

// ConfirmDeletion removes the entry named by token and saves. Later entries move up one
// position. Payments of a deleted member are kept and show as Unknown.
func (s *Store) ConfirmDeletion(ctx context.Context, token string) (DeletionRequest, error) {
	var req DeletionRequest
	err := s.commit(func(doc *core.Document) error {
		var err error
		req, err = s.takeLocked(token)
		if err != nil {
			return err
		}
		i := doc.IndexOf(req.Kind, req.ID)
		if i < 0 {
			return ErrNotFound
		}
		switch req.Kind {
		case core.KindMember:
			doc.Members = append(doc.Members[:i], doc.Members[i+1:]...)
		case core.KindPayment:
			doc.Payments = append(doc.Payments[:i], doc.Payments[i+1:]...)
		case core.KindExpense:
			doc.Expenses = append(doc.Expenses[:i], doc.Expenses[i+1:]...)
		}
		return nil
	})
	if err != nil {
		return DeletionRequest{}, err
	}

	s.observer.Notify(notify.Success(req.Kind.Label() + " deleted"))
	return req, s.persist(ctx, log.OpDelete, req.Kind, req.ID)
}

// DeclineDeletion forgets a pending deletion. Nothing else happens.
func (s *Store) DeclineDeletion(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.takeLocked(token)
	return err
}

// Pending returns the number of unexpired deletion requests.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.pending)
}

func (s *Store) takeLocked(token string) (DeletionRequest, error) {
	req, ok := s.pending[token]
	if !ok {
		return DeletionRequest{}, ErrUnknownToken
	}
	delete(s.pending, token)
	if !s.now().Before(req.ExpiresAt) {
		return DeletionRequest{}, ErrUnknownToken
	}
	return req, nil
}

func (s *Store) pruneLocked(now time.Time) {
	for token, req := range s.pending {
		if !now.Before(req.ExpiresAt) {
			delete(s.pending, token)
		}
	}
}
