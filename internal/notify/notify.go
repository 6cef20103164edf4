// Package notify defines how the ledger talks back to whatever is displaying it: a
// loading indicator, short-lived notifications, and a redraw request carrying the
// current document.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/core"
)

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type (
	Level string

	// Notice is a transient user-facing message, the equivalent of a toast.
	Notice struct {
		Level   Level     `json:"level"`
		Message string    `json:"message"`
		At      time.Time `json:"at"`
	}

	// Observer is implemented by the view layer.
	Observer interface {
		// Loading is called with true when the first remote call starts and false when the
		// last one finishes.
		Loading(active bool)
		Notify(n Notice)
		// Render asks for a full redraw from doc.
		Render(doc core.Document)
	}
)

func Success(msg string) Notice {
	return Notice{Level: LevelSuccess, Message: msg, At: time.Now().UTC()}
}

func Error(msg string) Notice {
	return Notice{Level: LevelError, Message: msg, At: time.Now().UTC()}
}

// Discard ignores everything.
type Discard struct{}

func (Discard) Loading(bool)         {}
func (Discard) Notify(Notice)        {}
func (Discard) Render(core.Document) {}

// Multi fans out to several observers in order.
type Multi []Observer

func (m Multi) Loading(active bool) {
	for _, o := range m {
		o.Loading(active)
	}
}

func (m Multi) Notify(n Notice) {
	for _, o := range m {
		o.Notify(n)
	}
}

func (m Multi) Render(doc core.Document) {
	for _, o := range m {
		o.Render(doc)
	}
}

// Logger mirrors notices into structured logs.
type Logger struct {
	L *slog.Logger
}

func (l Logger) logger() *slog.Logger {
	if l.L == nil {
		return slog.Default()
	}
	return l.L
}

func (l Logger) Loading(active bool) {
	l.logger().Debug("Loading indicator changed", "active", active)
}

func (l Logger) Notify(n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger().Log(context.Background(), level, "User notification", "level", string(n.Level), "message", n.Message)
}

func (l Logger) Render(doc core.Document) {
	l.logger().Debug("Render requested",
		"members", len(doc.Members),
		"payments", len(doc.Payments),
		"expenses", len(doc.Expenses))
}

// Recorder keeps the loading flag, the most recent notices and the last rendered
// document so they can be polled. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	limit    int
	loading  bool
	notices  []Notice
	renders  int
	rendered core.Document
}

// NewRecorder keeps at most limit notices; limit <= 0 means 50.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit, rendered: core.NewDocument()}
}

func (r *Recorder) Loading(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = active
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	if over := len(r.notices) - r.limit; over > 0 {
		r.notices = append([]Notice(nil), r.notices[over:]...)
	}
}

func (r *Recorder) Render(doc core.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
	r.rendered = doc.Clone()
}

func (r *Recorder) IsLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Notices returns a copy of the recorded notices, oldest first.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the newest notice, if any.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

func (r *Recorder) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

func (r *Recorder) Rendered() core.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered.Clone()
}
