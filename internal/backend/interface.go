package backend

import (
	"context"
	"time"

	"ledger/internal/docstore"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function.
type BackendResult struct {
	Store   docstore.Store
	Cleanup CleanupFunc
}

// Close runs Cleanup if the backend has one.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates document stores based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// Pantry specific
	PantryID      string
	PantryBasket  string
	PantryBaseURL string
	Timeout       time.Duration

	// SQLite specific
	SQLiteDBPath string
	DocumentKey  string

	// Memory specific, optional JSON file the store starts with
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	PantryBackend BackendType = "pantry"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, PantryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
