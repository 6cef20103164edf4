// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notify"
)

// Deps are the collaborators the server needs. Only Ledger is required.
type Deps struct {
	Ledger *ledger.Store
	// Recorder supplies recent notifications for /api/status.
	Recorder *notify.Recorder
	// Loading reports whether a remote call is in flight.
	Loading func() bool
	// Registry backs /metrics and receives the server's own collectors.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

// Server wraps http.Server with the ledger API routes.
type Server struct {
	http.Server

	store    *ledger.Store
	recorder *notify.Recorder
	loading  func() bool
	logger   *log.Logger
	sl       *log.StructuredLogger

	limiter  *mutationLimiter
	security *securityMetrics
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	shutdownOnce sync.Once
}

// collection binds a URL segment to the entity kind it holds.
type collection struct {
	path string
	kind core.Kind
}

var collections = []collection{
	{"members", core.KindMember},
	{"payments", core.KindPayment},
	{"expenses", core.KindExpense},
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	loading := deps.Loading
	if loading == nil {
		loading = func() bool { return false }
	}

	s := &Server{
		store:    deps.Ledger,
		recorder: deps.Recorder,
		loading:  loading,
		logger:   logger,
		sl:       log.NewStructuredLogger(logger),
		limiter:  newMutationLimiter(rateLimitRequests, rateLimitWindow),
		security: newSecurityMetrics(reg),
	}
	s.requests, s.duration = newRequestMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/document", s.handleDocument)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.handleAddMember)
	mux.HandleFunc("PUT /api/members/{id}", s.handleUpdateMember)
	mux.HandleFunc("GET /api/payments", s.handleListPayments)
	mux.HandleFunc("POST /api/payments", s.handleAddPayment)
	mux.HandleFunc("PUT /api/payments/{id}", s.handleUpdatePayment)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleAddExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	for _, c := range collections {
		mux.HandleFunc("DELETE /api/"+c.path+"/{id}", s.handleRequestDeletion(c.kind))
	}
	mux.HandleFunc("POST /api/deletions/{token}", s.handleConfirmDeletion)
	mux.HandleFunc("DELETE /api/deletions/{token}", s.handleDeclineDeletion)

	var h http.Handler = mux
	h = s.withSecurity(h)
	h = s.withRequestLog(h)
	h = log.RequestIDMiddleware(requestIDFromHeader)(h)
	h = log.Middleware(logger)(h)
	h = withRequestID(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
