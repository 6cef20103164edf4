// Package ledger owns the in-memory document and is the only place that changes it.
package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/docsync"
	"ledger/internal/log"
	"ledger/internal/notify"
)

const DefaultDeletionTTL = 5 * time.Minute

var _ docsync.Model = (*Store)(nil)

type (
	// Syncer persists and reloads the whole document of a model.
	Syncer interface {
		Load(ctx context.Context, m docsync.Model) error
		Save(ctx context.Context, m docsync.Model) error
	}

	Option func(*Store)

	Store struct {
		syncer   Syncer
		observer notify.Observer
		logger   *log.StructuredLogger
		newID    func() string
		now      func() time.Time
		ttl      time.Duration

		mu      sync.RWMutex
		doc     core.Document
		rev     uint64
		pending map[string]DeletionRequest
	}
)

// WithObserver receives validation and deletion notices. Pass the same observer the
// sync engine uses so all notices end up in one place.
func WithObserver(o notify.Observer) Option { return func(s *Store) { s.observer = o } }

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = log.NewStructuredLogger(l) }
}

func WithIDGenerator(f func() string) Option { return func(s *Store) { s.newID = f } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithDeletionTTL(d time.Duration) Option { return func(s *Store) { s.ttl = d } }

func New(syncer Syncer, opts ...Option) *Store {
	s := &Store{
		syncer:  syncer,
		newID:   uuid.NewString,
		now:     time.Now,
		ttl:     DefaultDeletionTTL,
		doc:     core.NewDocument(),
		pending: make(map[string]DeletionRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = notify.Discard{}
	}
	if s.logger == nil {
		s.logger = log.NewStructuredLogger(log.New(log.Config{
			Handler:   slog.NewTextHandler(io.Discard, nil),
			Component: log.ComponentLedger,
		}))
	}
	return s
}

// Snapshot returns a deep copy of the document and its revision.
func (s *Store) Snapshot() (core.Document, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone(), s.rev
}

// Replace swaps in a freshly loaded document.
func (s *Store) Replace(doc core.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.rev++
}

// Document returns a deep copy of the current document.
func (s *Store) Document() core.Document {
	doc, _ := s.Snapshot()
	return doc
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Load replaces the document with the remote one. See docsync.Engine.Load.
func (s *Store) Load(ctx context.Context) error {
	return s.syncer.Load(ctx, s)
}

func (s *Store) Summary() core.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Summarize(s.doc)
}

func (s *Store) Members() []core.MemberRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.MemberRows(s.doc)
}

func (s *Store) Payments() []core.PaymentRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.PaymentRows(s.doc)
}

func (s *Store) Expenses() []core.ExpenseRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ExpenseRows(s.doc)
}

// commit applies fn under the write lock and bumps the revision if fn succeeds.
func (s *Store) commit(fn func(doc *core.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.doc); err != nil {
		return err
	}
	s.rev++
	return nil
}

// persist saves after a commit. The commit stands whatever the outcome.
func (s *Store) persist(ctx context.Context, op string, kind core.Kind, id string) error {
	err := s.syncer.Save(ctx, s)
	s.logger.LogMutation(ctx, op, string(kind), id, err == nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return nil
}

func (s *Store) reject(msg string, err error) error {
	s.observer.Notify(notify.Error(msg))
	return &ValidationError{Message: msg, Err: err}
}
