// Package lock keeps two background runners from working the same data
// directory at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFileName is the guard file written into the data directory.
const PIDFileName = "watch.pid"

// Guard is a PID file in a data directory.
type Guard struct {
	dir string
}

// NewGuard creates a guard for dir.
func NewGuard(dir string) *Guard {
	return &Guard{dir: dir}
}

// Path returns the guard file location.
func (g *Guard) Path() string {
	return filepath.Join(g.dir, PIDFileName)
}

// Check returns an AlreadyRunningError if a live process holds the guard.
// A stale or unreadable PID file is removed.
func (g *Guard) Check() error {
	data, err := os.ReadFile(g.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(g.Path())
		return nil
	}
	if pid != os.Getpid() && processExists(pid) {
		return &AlreadyRunningError{PID: pid, Dir: g.dir}
	}

	_ = os.Remove(g.Path())
	return nil
}

// Acquire checks the guard and writes the current PID.
func (g *Guard) Acquire() error {
	if err := g.Check(); err != nil {
		return err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(g.Path(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file if this process owns it.
func (g *Guard) Release() {
	data, err := os.ReadFile(g.Path())
	if err != nil {
		return
	}
	if strings.TrimSpace(string(data)) == strconv.Itoa(os.Getpid()) {
		_ = os.Remove(g.Path())
	}
}

// AlreadyRunningError reports a live runner holding the guard.
type AlreadyRunningError struct {
	PID int
	Dir string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("watch already running for %s (pid %d)", e.Dir, e.PID)
}

// processExists reports whether pid is alive. On Unix FindProcess always
// succeeds, so signal 0 does the probing.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
