package docsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ledger/internal/core"
	"ledger/internal/docstore"
	"ledger/internal/docstore/memory"
	"ledger/internal/log"
	"ledger/internal/notify"
)

type fakeModel struct {
	mu  sync.Mutex
	doc core.Document
	rev uint64
}

func newFakeModel(doc core.Document) *fakeModel {
	return &fakeModel{doc: doc}
}

func (m *fakeModel) Snapshot() (core.Document, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), m.rev
}

func (m *fakeModel) Replace(doc core.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc
	m.rev++
}

func (m *fakeModel) setRev(rev uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rev = rev
}

type fakePublisher struct {
	mu    sync.Mutex
	revs  []uint64
	fail  error
	saved []core.Document
}

func (p *fakePublisher) PublishDocumentSaved(_ context.Context, rev uint64, doc core.Document, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.revs = append(p.revs, rev)
	p.saved = append(p.saved, doc)
	return nil
}

// loadingLog records every loading transition.
type loadingLog struct {
	notify.Discard
	mu          sync.Mutex
	transitions []bool
}

func (l *loadingLog) Loading(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, active)
}

func (l *loadingLog) get() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.transitions...)
}

// gatedStore blocks every call until the gate is closed.
type gatedStore struct {
	entered chan string
	gate    chan struct{}
}

func (g *gatedStore) Fetch(ctx context.Context) ([]byte, error) {
	g.entered <- "fetch"
	<-g.gate
	return nil, docstore.ErrNotFound
}

func (g *gatedStore) Replace(ctx context.Context, body []byte) error {
	g.entered <- "replace"
	<-g.gate
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil), Component: log.ComponentSync})
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestEngine(store docstore.Store, rec notify.Observer, opts ...Option) (*Engine, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	base := []Option{WithMetrics(metrics), WithLogger(quietLogger()), WithIDGenerator(sequentialIDs())}
	return New(store, rec, append(base, opts...)...), metrics
}

func scenarioDoc() core.Document {
	doc := core.NewDocument()
	doc.Members = append(doc.Members, core.Member{ID: "m1", Name: "Alice"})
	doc.Payments = append(doc.Payments, core.Payment{ID: "p1", MemberID: "m1", Amount: core.AmountFromInt(100)})
	doc.Expenses = append(doc.Expenses, core.Expense{ID: "e1", Summary: "Lunch", Amount: core.AmountFromInt(40)})
	return doc
}

func TestLoadReplacesModel(t *testing.T) {
	body, _ := json.Marshal(scenarioDoc())
	rec := notify.NewRecorder(0)
	e, metrics := newTestEngine(memory.NewWithBody(body), rec)
	m := newFakeModel(core.NewDocument())

	if err := e.Load(context.Background(), m); err != nil {
		t.Fatalf("load: %v", err)
	}

	got, rev := m.Snapshot()
	if len(got.Members) != 1 || got.Members[0].Name != "Alice" || rev != 1 {
		t.Fatalf("model not replaced: %+v rev=%d", got, rev)
	}
	if len(rec.Notices()) != 0 {
		t.Fatalf("successful load must not notify, got %v", rec.Notices())
	}
	if rec.Renders() != 1 || rec.IsLoading() {
		t.Fatalf("expected one render and loading off, got renders=%d loading=%v", rec.Renders(), rec.IsLoading())
	}
	if len(rec.Rendered().Expenses) != 1 {
		t.Fatal("render should receive the loaded document")
	}
	if v := testutil.ToFloat64(metrics.operations.WithLabelValues(opLoad, resultSuccess)); v != 1 {
		t.Fatalf("expected one successful load metric, got %v", v)
	}
}

func TestLoadAbsentKeepsDocument(t *testing.T) {
	tests := []struct {
		name  string
		store *memory.Store
	}{
		{name: "never written", store: memory.New()},
		{name: "empty body", store: memory.NewWithBody(nil)},
		{name: "whitespace body", store: memory.NewWithBody([]byte(" \n"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := notify.NewRecorder(0)
			e, _ := newTestEngine(tt.store, rec)
			m := newFakeModel(scenarioDoc())

			if err := e.Load(context.Background(), m); err != nil {
				t.Fatalf("absent document is not a failure: %v", err)
			}
			got, rev := m.Snapshot()
			if rev != 0 || len(got.Members) != 1 {
				t.Fatalf("model should be untouched, got %+v rev=%d", got, rev)
			}
			if len(rec.Notices()) != 0 || rec.Renders() != 1 {
				t.Fatalf("expected silent render, got notices=%v renders=%d", rec.Notices(), rec.Renders())
			}
		})
	}
}

func TestLoadFailureKeepsPriorDocument(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *memory.Store
	}{
		{name: "transport error", setup: func() *memory.Store {
			s := memory.New()
			s.FailFetch(errors.New("connection refused"))
			return s
		}},
		{name: "malformed json", setup: func() *memory.Store {
			return memory.NewWithBody([]byte(`{"members":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := notify.NewRecorder(0)
			e, metrics := newTestEngine(tt.setup(), rec)
			m := newFakeModel(scenarioDoc())

			if err := e.Load(context.Background(), m); err == nil {
				t.Fatal("expected load error")
			}
			got, _ := m.Snapshot()
			if len(got.Payments) != 1 {
				t.Fatalf("prior document must be kept, got %+v", got)
			}
			last, ok := rec.Last()
			if !ok || last.Level != notify.LevelError || last.Message != MsgFetchFailed {
				t.Fatalf("expected fetch failure notice, got %+v", last)
			}
			if rec.Renders() != 1 || rec.IsLoading() {
				t.Fatal("render must happen and loading must end even on failure")
			}
			if v := testutil.ToFloat64(metrics.operations.WithLabelValues(opLoad, resultError)); v != 1 {
				t.Fatalf("expected one failed load metric, got %v", v)
			}
		})
	}
}

func TestLoadNormalizesLegacyDocument(t *testing.T) {
	legacy := `{"members":[{"name":"Alice"},{"name":"Bob"}],"payments":[{"member_id":"1","amount":"25"}],"expenses":[{"summary":"Taxi","amount":10}]}`
	e, _ := newTestEngine(memory.NewWithBody([]byte(legacy)), notify.NewRecorder(0))
	m := newFakeModel(core.NewDocument())

	if err := e.Load(context.Background(), m); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, _ := m.Snapshot()
	bob := got.Members[1].ID
	if bob == "" || got.Payments[0].MemberID != bob {
		t.Fatalf("payment should reference Bob's id, got %+v", got)
	}
	if !got.Payments[0].Amount.Equal(core.AmountFromInt(25)) {
		t.Fatalf("numeric string amount should decode, got %s", got.Payments[0].Amount)
	}
	if got.Expenses[0].ID == "" {
		t.Fatal("expense id should be generated")
	}
}

func TestLegacyIDsRepeatAcrossGenerators(t *testing.T) {
	a, b := LegacyIDs(), LegacyIDs()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		x, y := a(), b()
		if x != y {
			t.Fatalf("call %d: %s != %s", i, x, y)
		}
		if seen[x] {
			t.Fatalf("call %d repeated id %s", i, x)
		}
		seen[x] = true
	}

	legacy := []byte(`{"members":[{"name":"Alice"}],"payments":[],"expenses":[]}`)
	first, _, _ := Decode(legacy, LegacyIDs())
	second, _, _ := Decode(legacy, LegacyIDs())
	if first.Members[0].ID != second.Members[0].ID {
		t.Fatalf("same document decoded to different ids: %s, %s", first.Members[0].ID, second.Members[0].ID)
	}
}

func TestSaveSuccess(t *testing.T) {
	store := memory.New()
	rec := notify.NewRecorder(0)
	pub := &fakePublisher{}
	e, metrics := newTestEngine(store, rec, WithPublisher(pub))
	m := newFakeModel(scenarioDoc())
	m.setRev(4)

	if err := e.Save(context.Background(), m); err != nil {
		t.Fatalf("save: %v", err)
	}

	body, ok := store.Body()
	if !ok {
		t.Fatal("remote not written")
	}
	var written core.Document
	if err := json.Unmarshal(body, &written); err != nil {
		t.Fatalf("remote body is not a document: %v", err)
	}
	s := core.Summarize(written)
	if s.Balance.String() != "60" {
		t.Fatalf("expected balance 60 in written document, got %s", s.Balance)
	}

	last, _ := rec.Last()
	if last.Level != notify.LevelSuccess || last.Message != MsgSaved {
		t.Fatalf("expected success notice, got %+v", last)
	}
	if len(pub.revs) != 1 || pub.revs[0] != 4 {
		t.Fatalf("expected one event for revision 4, got %v", pub.revs)
	}
	if v := testutil.ToFloat64(metrics.operations.WithLabelValues(opSave, resultSuccess)); v != 1 {
		t.Fatalf("expected one successful save metric, got %v", v)
	}
}

func TestSaveFailureDoesNotRollBack(t *testing.T) {
	store := memory.New()
	store.FailReplace(errors.New("503"))
	rec := notify.NewRecorder(0)
	pub := &fakePublisher{}
	e, _ := newTestEngine(store, rec, WithPublisher(pub))
	m := newFakeModel(scenarioDoc())

	if err := e.Save(context.Background(), m); err == nil {
		t.Fatal("expected save error")
	}

	got, _ := m.Snapshot()
	if len(got.Members) != 1 {
		t.Fatal("model must keep the unsaved change")
	}
	last, _ := rec.Last()
	if last.Level != notify.LevelError || last.Message != MsgSaveFailed {
		t.Fatalf("expected save failure notice, got %+v", last)
	}
	if len(pub.revs) != 0 {
		t.Fatal("failed save must not publish")
	}
	if rec.Renders() != 1 || rec.IsLoading() {
		t.Fatal("render must happen and loading must end on failure")
	}
}

func TestSavePublishFailureIsNotSurfaced(t *testing.T) {
	rec := notify.NewRecorder(0)
	e, _ := newTestEngine(memory.New(), rec, WithPublisher(&fakePublisher{fail: errors.New("broker down")}))

	if err := e.Save(context.Background(), newFakeModel(scenarioDoc())); err != nil {
		t.Fatalf("publish errors must not fail the save: %v", err)
	}
	if last, _ := rec.Last(); last.Message != MsgSaved {
		t.Fatalf("expected success notice, got %+v", last)
	}
}

func TestSaveSkipsOlderSnapshot(t *testing.T) {
	store := memory.New()
	rec := notify.NewRecorder(0)
	e, metrics := newTestEngine(store, rec)

	newer := newFakeModel(scenarioDoc())
	newer.setRev(2)
	if err := e.Save(context.Background(), newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	older := newFakeModel(core.NewDocument())
	older.setRev(1)
	if err := e.Save(context.Background(), older); err != nil {
		t.Fatalf("superseded save should not error: %v", err)
	}

	if _, replaces := store.Calls(); replaces != 1 {
		t.Fatalf("older snapshot must not reach the remote, replaces=%d", replaces)
	}
	body, _ := store.Body()
	var written core.Document
	_ = json.Unmarshal(body, &written)
	if len(written.Members) != 1 {
		t.Fatal("remote must end on the newest snapshot")
	}
	if v := testutil.ToFloat64(metrics.operations.WithLabelValues(opSave, resultSuperseded)); v != 1 {
		t.Fatalf("expected one superseded metric, got %v", v)
	}
	if len(rec.Notices()) != 1 {
		t.Fatalf("superseded save should not notify, got %v", rec.Notices())
	}
}

func TestLoadingIsReferenceCounted(t *testing.T) {
	store := &gatedStore{entered: make(chan string, 2), gate: make(chan struct{})}
	obs := &loadingLog{}
	e, _ := newTestEngine(store, obs)
	m := newFakeModel(core.NewDocument())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = e.Load(context.Background(), m) }()
	<-store.entered
	go func() { defer wg.Done(); _ = e.Save(context.Background(), m) }()
	<-store.entered

	if !e.Loading() {
		t.Fatal("expected loading while both operations are in flight")
	}
	if got := obs.get(); len(got) != 1 || !got[0] {
		t.Fatalf("loading should switch on exactly once, got %v", got)
	}

	close(store.gate)
	wg.Wait()

	if got := obs.get(); len(got) != 2 || got[1] {
		t.Fatalf("loading should switch off once after both finish, got %v", got)
	}
	if e.Loading() {
		t.Fatal("expected loading off")
	}
}
