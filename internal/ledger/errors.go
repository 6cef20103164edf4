package ledger

import "errors"

// User-facing rejection messages.
const (
	MsgNameRequired   = "Name required"
	MsgAmountRequired = "Amount required"
	MsgAllRequired    = "All fields required"
	MsgUnknownMember  = "Unknown member"
)

var (
	ErrNotFound      = errors.New("entry not found")
	ErrUnknownMember = errors.New("unknown member")
	ErrUnknownToken  = errors.New("unknown or expired deletion token")
	// ErrNotPersisted is wrapped when a change was applied in memory but the save failed.
	ErrNotPersisted = errors.New("change not persisted")
)

// ValidationError is a rejected mutation. Message is shown to the user as-is and
// Err is the underlying domain error.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }
