package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// DocumentSavedMessage carries a full copy of a document that reached the remote store,
// so consumers never need to read the store themselves.
type DocumentSavedMessage struct {
	Revision uint64         `json:"revision"`
	Members  []core.Member  `json:"members"`
	Payments []core.Payment `json:"payments"`
	Expenses []core.Expense `json:"expenses"`
	SavedAt  time.Time      `json:"saved_at"`
}

func NewDocumentSavedMessage(revision uint64, doc core.Document, savedAt time.Time) *DocumentSavedMessage {
	doc = doc.Clone()
	return &DocumentSavedMessage{
		Revision: revision,
		Members:  doc.Members,
		Payments: doc.Payments,
		Expenses: doc.Expenses,
		SavedAt:  savedAt.UTC(),
	}
}

// Document returns the carried document with non-nil collections.
func (m *DocumentSavedMessage) Document() core.Document {
	doc := core.Document{Members: m.Members, Payments: m.Payments, Expenses: m.Expenses}
	if doc.Members == nil {
		doc.Members = []core.Member{}
	}
	if doc.Payments == nil {
		doc.Payments = []core.Payment{}
	}
	if doc.Expenses == nil {
		doc.Expenses = []core.Expense{}
	}
	return doc
}

func (m *DocumentSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DocumentSavedMessageFromJSON(data []byte) (*DocumentSavedMessage, error) {
	var msg DocumentSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
