package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/docstore"
	"ledger/internal/docsync"
	"ledger/internal/log"
)

// Exporter writes a whole document to an external destination.
type Exporter interface {
	Export(ctx context.Context, doc core.Document) error
}

// ExportWorker mirrors saved documents to an Exporter. Events carry the full document;
// the store is only read by the periodic export, which covers lost events.
type ExportWorker struct {
	exporter Exporter
	source   docstore.Store

	mu          sync.Mutex
	lastSavedAt time.Time
	exports     int
}

func NewExportWorker(exporter Exporter, source docstore.Store) *ExportWorker {
	return &ExportWorker{exporter: exporter, source: source}
}

// HandleDocumentSaved exports the document carried by msg. Events older than the last
// exported one are acknowledged without exporting.
func (w *ExportWorker) HandleDocumentSaved(ctx context.Context, msg *amqp.DocumentSavedMessage) error {
	w.mu.Lock()
	stale := !w.lastSavedAt.IsZero() && msg.SavedAt.Before(w.lastSavedAt)
	w.mu.Unlock()
	if stale {
		slog.InfoContext(ctx, "Skipping stale document.saved event",
			log.FieldComponent, log.ComponentWorker,
			log.FieldRevision, msg.Revision,
			"saved_at", msg.SavedAt)
		return nil
	}

	if err := w.export(ctx, msg.Document(), msg.SavedAt); err != nil {
		return fmt.Errorf("export revision %d: %w", msg.Revision, err)
	}
	return nil
}

// ExportFromStore reads the current document from the store and exports it.
// An absent document is exported as empty so the sheet matches the store.
func (w *ExportWorker) ExportFromStore(ctx context.Context) error {
	if w.source == nil {
		return errors.New("no document store configured")
	}

	body, err := w.source.Fetch(ctx)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("fetch document: %w", err)
	}
	// Legacy entries get the ids the API will assign on its next load, so the sheet
	// does not change between exports.
	doc, found, err := docsync.Decode(body, docsync.LegacyIDs())
	if err != nil {
		return err
	}
	if !found {
		doc = core.NewDocument()
	}
	return w.export(ctx, doc, time.Now())
}

// PeriodicExport runs ExportFromStore every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (w *ExportWorker) PeriodicExport(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportFromStore(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed",
					log.FieldComponent, log.ComponentWorker,
					log.FieldOperation, log.OpExport,
					log.FieldError, err)
			}
		}
	}
}

// Exports returns how many exports succeeded.
func (w *ExportWorker) Exports() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports
}

func (w *ExportWorker) export(ctx context.Context, doc core.Document, savedAt time.Time) error {
	if err := w.exporter.Export(ctx, doc); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if savedAt.After(w.lastSavedAt) {
		w.lastSavedAt = savedAt
	}
	w.exports++
	return nil
}
