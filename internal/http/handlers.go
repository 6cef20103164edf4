package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/docsync"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notify"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

type (
	errorResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	// mutationResponse carries the committed entity. Synced is false when the change
	// was applied but could not be saved remotely.
	mutationResponse struct {
		Status  string `json:"status"`
		Synced  bool   `json:"synced"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}

	documentResponse struct {
		Revision uint64        `json:"revision"`
		Document core.Document `json:"document"`
	}

	summaryResponse struct {
		Members       int    `json:"members"`
		TotalPayments string `json:"total_payments"`
		TotalExpenses string `json:"total_expenses"`
		Balance       string `json:"balance"`
		Malformed     int    `json:"malformed,omitempty"`
	}

	statusResponse struct {
		Loading          bool            `json:"loading"`
		Revision         uint64          `json:"revision"`
		PendingDeletions int             `json:"pending_deletions"`
		Notices          []notify.Notice `json:"notices"`
	}

	memberRequest struct {
		Name string `json:"name"`
	}

	paymentRequest struct {
		MemberID string          `json:"member_id"`
		Amount   json.RawMessage `json:"amount"`
	}

	expenseRequest struct {
		Summary string          `json:"summary"`
		Amount  json.RawMessage `json:"amount"`
	}
)

func (s *Server) handleDocument(w http.ResponseWriter, _ *http.Request) {
	doc, rev := s.store.Snapshot()
	writeJSON(w, http.StatusOK, documentResponse{Revision: rev, Document: doc})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	sum := s.store.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{
		Members:       sum.Members,
		TotalPayments: core.FormatAmount(sum.TotalPayments),
		TotalExpenses: core.FormatAmount(sum.TotalExpenses),
		Balance:       core.FormatAmount(sum.Balance),
		Malformed:     sum.Malformed,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Loading:          s.loading(),
		Revision:         s.store.Revision(),
		PendingDeletions: s.store.Pending(),
		Notices:          []notify.Notice{},
	}
	if s.recorder != nil {
		resp.Notices = s.recorder.Notices()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Load(r.Context()); err != nil {
		s.sl.LogError(r.Context(), "Reload failed", err, log.ComponentHTTP, log.OpLoad, nil)
		writeJSON(w, http.StatusBadGateway, errorResponse{Status: statusError, Message: docsync.MsgFetchFailed})
		return
	}
	s.handleDocument(w, r)
}

func (s *Server) handleListMembers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Members())
}

func (s *Server) handleListPayments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Payments())
}

func (s *Server) handleListExpenses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Expenses())
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.store.AddMember(r.Context(), sanitizeInput(req.Name))
	s.respondMutation(w, r, http.StatusCreated, m, err)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.store.UpdateMember(r.Context(), r.PathValue("id"), sanitizeInput(req.Name))
	s.respondMutation(w, r, http.StatusOK, m, err)
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.store.AddPayment(r.Context(), req.input())
	s.respondMutation(w, r, http.StatusCreated, p, err)
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.store.UpdatePayment(r.Context(), r.PathValue("id"), req.input())
	s.respondMutation(w, r, http.StatusOK, p, err)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.store.AddExpense(r.Context(), req.input())
	s.respondMutation(w, r, http.StatusCreated, e, err)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.store.UpdateExpense(r.Context(), r.PathValue("id"), req.input())
	s.respondMutation(w, r, http.StatusOK, e, err)
}

// handleRequestDeletion only issues a token; nothing is removed until it is confirmed.
func (s *Server) handleRequestDeletion(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.store.RequestDeletion(kind, r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, req)
	}
}

func (s *Server) handleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.ConfirmDeletion(r.Context(), r.PathValue("token"))
	s.respondMutation(w, r, http.StatusOK, req, err)
}

func (s *Server) handleDeclineDeletion(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeclineDeletion(r.PathValue("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Status: statusOK, Synced: true})
}

func (p paymentRequest) input() ledger.PaymentInput {
	return ledger.PaymentInput{
		MemberID: sanitizeInput(p.MemberID),
		Amount:   parseAmountField(p.Amount),
	}
}

func (e expenseRequest) input() ledger.ExpenseInput {
	return ledger.ExpenseInput{
		Summary: sanitizeInput(e.Summary),
		Amount:  parseAmountField(e.Amount),
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid request body",
			log.FieldPath, r.URL.Path, log.FieldError, err.Error())
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: "Invalid request body"})
		return false
	}
	return true
}

// respondMutation writes a committed change. A save failure still reports the entity,
// marked as not synced, because the change stays applied locally.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	switch {
	case err == nil:
		writeJSON(w, status, mutationResponse{Status: statusOK, Synced: true, Data: data})
	case errors.Is(err, ledger.ErrNotPersisted):
		writeJSON(w, http.StatusOK, mutationResponse{
			Status:  statusOK,
			Synced:  false,
			Message: docsync.MsgSaveFailed,
			Data:    data,
		})
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Status: statusError, Message: ve.Message})
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrUnknownToken), errors.Is(err, core.ErrUnknownKind):
		writeJSON(w, http.StatusNotFound, errorResponse{Status: statusError, Message: err.Error()})
	default:
		s.sl.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, r.Method, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: statusError, Message: "Internal error"})
	}
}
