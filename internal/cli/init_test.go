package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"ledger/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LEDGER_TEST_ENV=from-file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LEDGER_TEST_ENV", "")
	os.Unsetenv("LEDGER_TEST_ENV")

	LoadEnvFile(path)
	if got := os.Getenv("LEDGER_TEST_ENV"); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestSetupLoggerUsesEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	defer slog.SetDefault(slog.Default())

	l := SetupLogger(log.ComponentWorker)
	if l.Component() != log.ComponentWorker {
		t.Fatalf("unexpected component %s", l.Component())
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("default logger should be at debug level")
	}
}

func TestShutdownRunsCleanup(t *testing.T) {
	sig := make(chan os.Signal, 1)
	cleaned := make(chan struct{})
	ctx, done := shutdownOn(quietLogger(), sig, time.Second, func() { close(cleaned) })

	sig <- syscall.SIGTERM
	WaitForShutdown(ctx, done)

	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup did not run")
	}
}

func TestShutdownTimeout(t *testing.T) {
	sig := make(chan os.Signal, 1)
	block := make(chan struct{})
	defer close(block)
	ctx, done := shutdownOn(quietLogger(), sig, 10*time.Millisecond, func() { <-block })

	sig <- syscall.SIGINT
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown should give up after the timeout")
	}
	if ctx.Err() == nil {
		t.Fatal("context should be cancelled")
	}
}
