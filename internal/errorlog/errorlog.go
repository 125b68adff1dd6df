// Package errorlog appends failed operations to a JSON-lines file so they can be
// reviewed after the fact. It is off unless LOG_OPERATION_ERRORS=true.
package errorlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRetention is how long entries are kept.
	DefaultRetention = 60 * 24 * time.Hour

	// EnvEnable turns the log on when set to "true".
	EnvEnable = "LOG_OPERATION_ERRORS"

	fileName = "operation-errors.log"
)

// Entry is one logged failure.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Error     string         `json:"error"`
	Category  string         `json:"category,omitempty"`
	Transport string         `json:"transport,omitempty"`
}

// Logger writes entries to a single file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	path    string
	logger  *logrus.Logger
	now     func() time.Time
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Disabled returns a logger that drops every entry.
func Disabled() *Logger {
	return &Logger{now: time.Now}
}

// Open appends to operation-errors.log in dir, creating the directory if needed.
func Open(dir string, logger *logrus.Logger) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &Logger{
		enabled: true,
		path:    filepath.Join(dir, fileName),
		logger:  logger,
		now:     time.Now,
	}
	if err := l.reopenLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// InitGlobal sets up the process-wide logger from the environment. The file lives in
// ~/.pdfmaster/logs. Entries older than DefaultRetention are pruned in the background.
func InitGlobal(logger *logrus.Logger) error {
	var initErr error
	globalOnce.Do(func() {
		if os.Getenv(EnvEnable) != "true" {
			global = Disabled()
			return
		}

		home, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			global = Disabled()
			return
		}

		l, err := Open(filepath.Join(home, ".pdfmaster", "logs"), logger)
		if err != nil {
			initErr = err
			global = Disabled()
			return
		}
		global = l

		go func() {
			if _, err := l.Prune(DefaultRetention); err != nil {
				logger.WithError(err).Warn("Failed to prune operation error log")
			}
		}()
		logger.Infof("Operation error logging enabled: %s", l.path)
	})
	return initErr
}

// Global returns the process-wide logger, disabled until InitGlobal enables it.
func Global() *Logger {
	if global == nil {
		return Disabled()
	}
	return global
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Path is the log file location, empty when disabled.
func (l *Logger) Path() string {
	return l.path
}

// Log records a failed operation. Arguments are sanitised before they are written.
func (l *Logger) Log(operation string, args map[string]any, err error, transport string) {
	if !l.enabled || err == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	entry := Entry{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Operation: operation,
		Arguments: telemetry.SanitiseFields(args),
		Error:     err.Error(),
		Category:  telemetry.CategoriseError(err),
		Transport: transport,
	}
	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		l.logger.WithError(marshalErr).Error("Failed to marshal operation error entry")
		return
	}
	if _, writeErr := l.file.Write(append(data, '\n')); writeErr != nil {
		l.logger.WithError(writeErr).Error("Failed to write operation error entry")
		return
	}
	if syncErr := l.file.Sync(); syncErr != nil {
		l.logger.WithError(syncErr).Error("Failed to sync operation error log")
	}
}

// Entries reads every entry currently in the file. Malformed lines are skipped.
func (l *Logger) Entries() ([]Entry, error) {
	if !l.enabled {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLinesLocked()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Prune rewrites the file without entries older than retention and returns how many
// were dropped. Lines that cannot be parsed are kept.
func (l *Logger) Prune(retention time.Duration) (int, error) {
	if !l.enabled {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLinesLocked()
	if err != nil {
		return 0, err
	}

	cutoff := l.now().Add(-retention)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		var e Entry
		if json.Unmarshal([]byte(line), &e) != nil {
			kept = append(kept, line)
			continue
		}
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil || ts.After(cutoff) {
			kept = append(kept, line)
		}
	}
	dropped := len(lines) - len(kept)
	if dropped == 0 {
		return 0, nil
	}

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return 0, fmt.Errorf("failed to close log file for pruning: %w", err)
		}
		l.file = nil
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		_ = l.reopenLocked()
		return 0, fmt.Errorf("failed to write pruned log file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		_ = l.reopenLocked()
		return 0, fmt.Errorf("failed to replace log file: %w", err)
	}
	return dropped, l.reopenLocked()
}

// Close closes the file.
func (l *Logger) Close() error {
	if !l.enabled {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) readLinesLocked() ([]string, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return lines, nil
}

func (l *Logger) reopenLocked() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = f
	return nil
}
