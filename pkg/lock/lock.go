// Package lock implements the PID lock file that enforces the session
// orchestrator's single-instance invariant (spec §4.7, §9 "session
// registry"). No pack example implements PID-file locking; this is one of
// the standard-library-only packages named in DESIGN.md, grounded on the
// teacher's own error-sentinel convention (errors.New + fmt.Errorf %w).
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var ErrHeldByLivePeer = errors.New("lock: another instance holds the lock")

// Lock is a PID file at a fixed path. The zero value is not usable; use New.
type Lock struct {
	path string
}

func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire reads the lock file. If it names a live PID, it returns
// ErrHeldByLivePeer. Otherwise (missing file, unparsable content, or a
// PID that is no longer alive) it overwrites the file with the current
// PID and succeeds.
func (l *Lock) Acquire() error {
	if pid, ok := readPID(l.path); ok && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("%w (pid %d)", ErrHeldByLivePeer, pid)
	}
	data := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("lock: write pid file: %w", err)
	}
	return nil
}

// Release removes the lock file. Missing file is a no-op.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func readPID(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether pid refers to a running process. On
// Unix, os.FindProcess always succeeds; liveness requires signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	// EPERM means the process exists but is owned by another user; that
	// still counts as "alive" for lock-contention purposes.
	return err == nil || errors.Is(err, syscall.EPERM)
}
