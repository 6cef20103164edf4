package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/docstore"
	"ledger/internal/docstore/memory"
	"ledger/internal/docstore/pantry"
	"ledger/internal/docstore/sqlite"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(seed, []byte(`{"members":[]}`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, r *BackendResult)
	}{
		{
			name:   "memory",
			config: Config{Type: MemoryBackend},
			check: func(t *testing.T, r *BackendResult) {
				if _, ok := r.Store.(*memory.Store); !ok {
					t.Fatalf("expected memory store, got %T", r.Store)
				}
				if _, err := r.Store.Fetch(context.Background()); !errors.Is(err, docstore.ErrNotFound) {
					t.Fatalf("fresh memory store should be empty, got %v", err)
				}
			},
		},
		{
			name:   "memory with seed",
			config: Config{Type: MemoryBackend, SeedFile: seed},
			check: func(t *testing.T, r *BackendResult) {
				body, err := r.Store.Fetch(context.Background())
				if err != nil || string(body) != `{"members":[]}` {
					t.Fatalf("expected seeded body, got %q err=%v", body, err)
				}
			},
		},
		{
			name:   "pantry",
			config: Config{Type: PantryBackend, PantryID: "abc", Timeout: 2 * time.Second},
			check: func(t *testing.T, r *BackendResult) {
				c, ok := r.Store.(*pantry.Client)
				if !ok {
					t.Fatalf("expected pantry client, got %T", r.Store)
				}
				if c.BaseURL != pantry.DefaultBaseURL || c.Basket != pantry.DefaultBasket || c.HTTP.Timeout != 2*time.Second {
					t.Fatalf("unexpected client %+v", c)
				}
			},
		},
		{
			name:   "sqlite",
			config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "ledger.db"), DocumentKey: "trip"},
			check: func(t *testing.T, r *BackendResult) {
				if _, ok := r.Store.(*sqlite.Store); !ok {
					t.Fatalf("expected sqlite store, got %T", r.Store)
				}
				if r.Cleanup == nil {
					t.Fatal("sqlite backend must provide cleanup")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := quietFactory().CreateBackend(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer r.Close()
			tt.check(t, r)
		})
	}
}

func TestCreateBackendInvalid(t *testing.T) {
	for _, cfg := range []Config{
		{Type: "sheets"},
		{Type: PantryBackend},
		{Type: SQLiteBackend},
	} {
		if _, err := quietFactory().CreateBackend(context.Background(), cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend:   "pantry",
		PantryID:      "abc",
		PantryBasket:  "trip",
		PantryBaseURL: "http://localhost:9999",
		RemoteTimeout: time.Second,
		DocumentKey:   "appdata",
	}
	got, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != PantryBackend || got.PantryID != "abc" || got.PantryBasket != "trip" || got.Timeout != time.Second {
		t.Fatalf("unexpected backend config %+v", got)
	}

	app.DataBackend = "bogus"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for invalid backend")
	}
}

func TestBackendTypes(t *testing.T) {
	got := GetBackendTypeStrings()
	want := []string{"memory", "pantry", "sqlite"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
