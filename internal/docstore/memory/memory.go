package memory

import (
	"context"
	"os"
	"sync"

	"ledger/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

// Store keeps the blob in process memory. FailFetch and FailReplace inject errors,
// which is how tests simulate an unreachable remote.
type Store struct {
	mu          sync.Mutex
	body        []byte
	set         bool
	fetches     int
	replaces    int
	failFetch   error
	failReplace error
}

func New() *Store {
	return &Store{}
}

// NewWithBody returns a store that already holds body.
func NewWithBody(body []byte) *Store {
	s := New()
	s.body = append([]byte(nil), body...)
	s.set = true
	return s
}

// NewFromFile seeds the store from a JSON file when it exists.
func NewFromFile(path string) *Store {
	b, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	return NewWithBody(b)
}

func (s *Store) Fetch(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.failFetch != nil {
		return nil, s.failFetch
	}
	if !s.set {
		return nil, docstore.ErrNotFound
	}
	return append([]byte(nil), s.body...), nil
}

func (s *Store) Replace(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces++
	if s.failReplace != nil {
		return s.failReplace
	}
	s.body = append([]byte(nil), body...)
	s.set = true
	return nil
}

// FailFetch makes every Fetch return err until called again with nil.
func (s *Store) FailFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetch = err
}

// FailReplace makes every Replace return err until called again with nil.
func (s *Store) FailReplace(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReplace = err
}

// Body returns the stored blob and whether anything was stored.
func (s *Store) Body() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.body...), s.set
}

// Calls returns how many Fetch and Replace calls were made.
func (s *Store) Calls() (fetches, replaces int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches, s.replaces
}
