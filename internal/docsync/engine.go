// Package docsync moves the whole ledger document between memory and the remote store.
package docsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ledger/internal/core"
	"ledger/internal/docstore"
	"ledger/internal/log"
	"ledger/internal/notify"
)

// User-facing notice texts.
const (
	MsgFetchFailed = "Failed to fetch data"
	MsgSaved       = "Saved successfully"
	MsgSaveFailed  = "Error saving data"
)

type (
	// Model is the in-memory owner of the document.
	Model interface {
		// Snapshot returns a deep copy of the document and its revision.
		// The revision grows by one on every committed change.
		Snapshot() (core.Document, uint64)
		// Replace swaps the whole document, as after a load.
		Replace(doc core.Document)
	}

	// Publisher announces documents that reached the remote store.
	Publisher interface {
		PublishDocumentSaved(ctx context.Context, revision uint64, doc core.Document, savedAt time.Time) error
	}

	Option func(*Engine)

	// Engine performs loads and saves and reports their progress to an observer.
	Engine struct {
		remote    docstore.Store
		observer  notify.Observer
		publisher Publisher
		metrics   *Metrics
		logger    *log.Logger
		newID     func() string
		now       func() time.Time

		loads singleflight.Group

		mu       sync.Mutex // guards inflight and observer calls
		inflight int

		sendMu     sync.Mutex // serializes remote writes
		written    bool
		writtenRev uint64
	}

	fetchResult struct {
		doc   core.Document
		found bool
	}
)

// errSuperseded is never returned to callers. It marks saves skipped in favor of a newer snapshot.
var errSuperseded = errors.New("superseded by a newer save")

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithIDGenerator sets the id source used when normalizing legacy documents. The
// default is LegacyIDs.
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(remote docstore.Store, observer notify.Observer, opts ...Option) *Engine {
	e := &Engine{
		remote:   remote,
		observer: observer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = notify.Discard{}
	}
	if e.logger == nil {
		e.logger = log.New(log.Config{Component: log.ComponentSync})
	}
	return e
}

// Load fetches the remote document into m. An absent or empty remote document leaves m
// unchanged and is not an error. Concurrent loads share one remote request.
// Render is always signalled, whatever the outcome.
func (e *Engine) Load(ctx context.Context, m Model) error {
	e.begin()
	defer e.end(m)

	started := time.Now()
	v, err, _ := e.loads.Do(opLoad, func() (any, error) {
		return e.fetch(ctx)
	})
	if err != nil {
		e.metrics.observe(opLoad, resultError, started)
		e.logger.ErrorContext(ctx, "Load failed", log.FieldError, err)
		e.notify(notify.Error(MsgFetchFailed))
		return fmt.Errorf("load document: %w", err)
	}

	res := v.(fetchResult)
	if !res.found {
		e.metrics.observe(opLoad, resultNotFound, started)
		e.logger.InfoContext(ctx, "Remote document absent, keeping current document")
		return nil
	}

	m.Replace(res.doc.Clone())
	e.metrics.observe(opLoad, resultSuccess, started)
	e.logger.InfoContext(ctx, "Document loaded",
		log.NewFields().WithDocument(len(res.doc.Members), len(res.doc.Payments), len(res.doc.Expenses)).ToSlice()...)
	return nil
}

func (e *Engine) fetch(ctx context.Context) (fetchResult, error) {
	body, err := e.remote.Fetch(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		return fetchResult{}, nil
	}
	if err != nil {
		return fetchResult{}, err
	}
	newID := e.newID
	if newID == nil {
		newID = LegacyIDs()
	}
	doc, found, err := Decode(body, newID)
	if err != nil {
		return fetchResult{}, err
	}
	return fetchResult{doc: doc, found: found}, nil
}

var legacyNamespace = uuid.MustParse("5b1f3c2e-8d4a-4e6b-9c71-2f0a7d9e4b13")

// LegacyIDs returns a fresh generator for entries stored without ids. Every generator
// yields the same sequence, so each reader of one stored document (the API and the
// export worker) assigns the same ids to it until the API saves them.
func LegacyIDs() func() string {
	n := 0
	return func() string {
		n++
		return uuid.NewSHA1(legacyNamespace, []byte(strconv.Itoa(n))).String()
	}
}

// Decode parses a stored document and normalizes it. A blank body reports found=false.
func Decode(body []byte, newID func() string) (doc core.Document, found bool, err error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return core.Document{}, false, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.Document{}, false, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize(newID)
	return doc, true, nil
}

// Save writes the current snapshot of m over the remote document. Writes are serialized,
// and a snapshot older than one already written is skipped because the newer write
// already contains it. Failures are reported and returned; m is never rolled back.
func (e *Engine) Save(ctx context.Context, m Model) error {
	e.begin()
	defer e.end(m)

	started := time.Now()
	doc, rev := m.Snapshot()

	err := e.write(ctx, doc, rev)
	switch {
	case errors.Is(err, errSuperseded):
		e.metrics.observe(opSave, resultSuperseded, started)
		e.logger.DebugContext(ctx, "Save skipped", log.FieldRevision, rev)
		return nil
	case err != nil:
		e.metrics.observe(opSave, resultError, started)
		e.logger.ErrorContext(ctx, "Save failed", log.FieldRevision, rev, log.FieldError, err)
		e.notify(notify.Error(MsgSaveFailed))
		return fmt.Errorf("save document: %w", err)
	}

	e.metrics.observe(opSave, resultSuccess, started)
	e.notify(notify.Success(MsgSaved))
	e.publish(ctx, rev, doc)
	return nil
}

func (e *Engine) write(ctx context.Context, doc core.Document, rev uint64) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.written && rev < e.writtenRev {
		return errSuperseded
	}
	if err := e.remote.Replace(ctx, body); err != nil {
		return err
	}
	e.written = true
	e.writtenRev = rev
	return nil
}

func (e *Engine) publish(ctx context.Context, rev uint64, doc core.Document) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishDocumentSaved(ctx, rev, doc, e.now()); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish document.saved event", log.FieldRevision, rev, log.FieldError, err)
	}
}

// Loading reports whether any load or save is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight > 0
}

func (e *Engine) begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight++
	if e.inflight == 1 {
		e.observer.Loading(true)
	}
}

func (e *Engine) end(m Model) {
	doc, _ := m.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	if e.inflight == 0 {
		e.observer.Loading(false)
	}
	e.observer.Render(doc)
}

func (e *Engine) notify(n notify.Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer.Notify(n)
}
