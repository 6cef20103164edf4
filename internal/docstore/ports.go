package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Fetch when the store has never been written.
var ErrNotFound = errors.New("document not found")

// Ports for outbound adapters.
type (
	// Store holds one JSON blob and only supports whole-value reads and writes.
	Store interface {
		// Fetch returns the stored blob, or ErrNotFound if nothing has been stored yet.
		// An empty blob is returned as-is.
		Fetch(ctx context.Context) ([]byte, error)

		// Replace overwrites the stored blob unconditionally.
		Replace(ctx context.Context, body []byte) error
	}
)
