package core

import (
	"encoding/json"
	"fmt"
	"testing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestNormalizeLegacyDocument(t *testing.T) {
	// Shape written by the original browser client: no ids, positional member refs.
	raw := `{
		"members":[{"name":"Alice"},{"name":"Bob"}],
		"payments":[
			{"member_id":"1","amount":100,"created_at":"2025-01-02T03:04:05.678Z"},
			{"member_id":"7","amount":5}
		],
		"expenses":[{"summary":"Lunch","amount":40}]
	}`
	var d Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !d.Normalize(sequentialIDs()) {
		t.Fatalf("expected legacy document to change")
	}
	if d.Members[0].ID != "id-1" || d.Members[1].ID != "id-2" {
		t.Fatalf("unexpected member ids: %+v", d.Members)
	}
	if d.Payments[0].MemberID != d.Members[1].ID {
		t.Fatalf("positional ref not migrated: %q", d.Payments[0].MemberID)
	}
	if d.Payments[1].MemberID != "7" {
		t.Fatalf("out of range ref should be left alone, got %q", d.Payments[1].MemberID)
	}
	if d.Payments[0].ID == "" || d.Expenses[0].ID == "" {
		t.Fatalf("transactions did not receive ids")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	d := Document{Members: []Member{{Name: "A"}}, Payments: []Payment{{MemberID: "0", Amount: AmountFromInt(1)}}}
	d.Normalize(sequentialIDs())
	if d.Normalize(sequentialIDs()) {
		t.Fatalf("second normalize should be a no-op")
	}
}

func TestNormalizeKeepsKnownIDs(t *testing.T) {
	// A member whose id happens to look like an index must not be remapped.
	d := Document{
		Members:  []Member{{ID: "1", Name: "One"}, {ID: "x", Name: "X"}},
		Payments: []Payment{{ID: "p", MemberID: "1"}},
		Expenses: nil,
	}
	if d.Normalize(sequentialIDs()) {
		t.Fatalf("expected no change")
	}
	if d.Payments[0].MemberID != "1" {
		t.Fatalf("known id was remapped to %q", d.Payments[0].MemberID)
	}
	if d.Expenses == nil {
		t.Fatalf("nil collection should become empty")
	}
}
