package ledger

import (
	"context"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Store) AddMember(ctx context.Context, name string) (core.Member, error) {
	m := core.Member{Name: strings.TrimSpace(name)}
	if err := m.Validate(); err != nil {
		return core.Member{}, s.reject(MsgNameRequired, err)
	}
	m.ID = s.newID()

	_ = s.commit(func(doc *core.Document) error {
		doc.Members = append(doc.Members, m)
		return nil
	})
	return m, s.persist(ctx, log.OpCreate, core.KindMember, m.ID)
}

// UpdateMember renames a member in place. Payments keep pointing at it by id.
func (s *Store) UpdateMember(ctx context.Context, id, name string) (core.Member, error) {
	m := core.Member{ID: id, Name: strings.TrimSpace(name)}
	if err := m.Validate(); err != nil {
		return core.Member{}, s.reject(MsgNameRequired, err)
	}

	err := s.commit(func(doc *core.Document) error {
		i := doc.IndexOf(core.KindMember, id)
		if i < 0 {
			return ErrNotFound
		}
		doc.Members[i] = m
		return nil
	})
	if err != nil {
		return core.Member{}, err
	}
	return m, s.persist(ctx, log.OpUpdate, core.KindMember, id)
}
