// Package session owns the process-lifetime temporary root that holds every uploaded
// and generated file. The root moves through uninitialised, active, cleaning and
// terminated states and is removed recursively on shutdown.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// State is a stage in the session root lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateCleaning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCleaning:
		return "cleaning"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

const (
	// DirPrefix names every session root so orphans can be found by SweepOrphans.
	DirPrefix = "pdfmaster-session-"

	uploadsDir = "uploads"
	outputsDir = "outputs"
	workDir    = "work"
	lockName   = ".lock"

	// orphanGrace protects roots that another process has created but not yet locked.
	orphanGrace = time.Minute
)

// ErrNotActive is returned when the root is used outside the active state.
var ErrNotActive = errors.New("session root is not active")

// Root is the session temp directory tree.
type Root struct {
	mu     sync.RWMutex
	base   string
	path   string
	state  State
	lock   *flock.Flock
	logger *logrus.Logger
	start  time.Time
}

// New returns an uninitialised root that will be created under base.
// An empty base uses the OS temp directory.
func New(base string, logger *logrus.Logger) *Root {
	if base == "" {
		base = os.TempDir()
	}
	return &Root{base: base, logger: logger}
}

// Init creates the root with its uploads, outputs and work directories and takes an
// advisory lock on it. Init may only be called once.
func (r *Root) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return fmt.Errorf("session root already %s", r.state)
	}

	if err := os.MkdirAll(r.base, 0o750); err != nil {
		return fmt.Errorf("failed to create temp base %s: %w", r.base, err)
	}

	path, err := os.MkdirTemp(r.base, DirPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create session root: %w", err)
	}

	for _, sub := range []string{uploadsDir, outputsDir, workDir} {
		if err := os.Mkdir(filepath.Join(path, sub), 0o750); err != nil {
			_ = os.RemoveAll(path)
			return fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	lock := flock.New(filepath.Join(path, lockName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.RemoveAll(path)
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return fmt.Errorf("failed to lock session root: %w", err)
	}

	r.path = path
	r.lock = lock
	r.state = StateActive
	r.start = time.Now()

	r.logger.WithField("root", path).Info("Session root created")
	return nil
}

// Cleanup releases the lock and removes the root recursively. It is safe to call more
// than once; calls after a successful cleanup are no-ops.
func (r *Root) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateTerminated:
		return nil
	case StateUninitialized:
		r.state = StateTerminated
		return nil
	}

	r.state = StateCleaning
	r.logger.WithField("root", r.path).Debug("Cleaning session root")

	if r.lock != nil {
		if err := r.lock.Unlock(); err != nil {
			r.logger.WithError(err).Warn("Failed to release session lock")
		}
	}

	if err := os.RemoveAll(r.path); err != nil {
		return fmt.Errorf("failed to remove session root %s: %w", r.path, err)
	}

	r.state = StateTerminated
	r.logger.WithField("root", r.path).Info("Session root removed")
	return nil
}

// State returns the current lifecycle state.
func (r *Root) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Active returns ErrNotActive unless the root accepts file operations.
func (r *Root) Active() error {
	if r.State() != StateActive {
		return ErrNotActive
	}
	return nil
}

// Path returns the root directory.
func (r *Root) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// UploadDir holds incoming files.
func (r *Root) UploadDir() string { return filepath.Join(r.Path(), uploadsDir) }

// OutputDir holds generated artifacts.
func (r *Root) OutputDir() string { return filepath.Join(r.Path(), outputsDir) }

// WorkDir holds scratch files and zip bundles.
func (r *Root) WorkDir() string { return filepath.Join(r.Path(), workDir) }

// Uptime is the time since Init.
func (r *Root) Uptime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.start.IsZero() {
		return 0
	}
	return time.Since(r.start)
}

// Contains reports whether path resolves to a location inside the root.
func (r *Root) Contains(path string) bool {
	root := r.Path()
	if root == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// MkdirWork creates a fresh scratch directory under the work dir.
func (r *Root) MkdirWork(pattern string) (string, error) {
	if err := r.Active(); err != nil {
		return "", err
	}
	return os.MkdirTemp(r.WorkDir(), pattern)
}

// SweepOrphans removes session roots under base whose owning process has gone away.
// A root counts as orphaned when its lock can be taken. Roots younger than a minute
// are left alone.
func SweepOrphans(base string, logger *logrus.Logger) (int, error) {
	if base == "" {
		base = os.TempDir()
	}

	matches, err := filepath.Glob(filepath.Join(base, DirPrefix+"*"))
	if err != nil {
		return 0, fmt.Errorf("failed to list session roots: %w", err)
	}

	removed := 0
	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() || time.Since(info.ModTime()) < orphanGrace {
			continue
		}

		lock := flock.New(filepath.Join(dir, lockName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			logger.WithError(err).WithField("root", dir).Warn("Failed to remove orphaned session root")
			_ = lock.Unlock()
			continue
		}
		_ = lock.Unlock()

		logger.WithField("root", dir).Info("Removed orphaned session root")
		removed++
	}

	return removed, nil
}
