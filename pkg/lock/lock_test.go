package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireCreatesFileWithCurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	l := New(path)
	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	pid, err := strconv.Atoi(string(raw))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("expected pid file to contain %d, got %q", os.Getpid(), raw)
	}
}

func TestAcquireOverwritesStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	// PID 999999 is extremely unlikely to be alive.
	if err := os.WriteFile(path, []byte("999999"), 0644); err != nil {
		t.Fatal(err)
	}
	l := New(path)
	if err := l.Acquire(); err != nil {
		t.Fatalf("expected stale lock to be overwritten, got error: %v", err)
	}
}

func TestAcquireFailsOnLivePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	// os.Getpid() cannot stand in for a live peer, since Acquire ignores
	// its own PID; use pid 1, which is always alive on any running Linux system.
	if err := os.WriteFile(path, []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}
	l := New(path)
	if err := l.Acquire(); err == nil {
		t.Fatal("expected error acquiring a lock held by a live pid")
	}
}

func TestReleaseOnMissingFileIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pid")
	l := New(path)
	if err := l.Release(); err != nil {
		t.Fatalf("expected no error releasing missing lock file, got %v", err)
	}
}
