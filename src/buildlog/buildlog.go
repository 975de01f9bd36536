// Package buildlog provides the per-run build log: an append-only text file
// named by the run's start time, mirrored byte for byte to the console.
package buildlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileLayout names log files log__YYYY-MM-DD__HH-MM-SS.txt on a 12-hour clock.
const fileLayout = "2006-01-02__03-04-05"

// Pattern matches every log file FileName produces.
const Pattern = "log__*.txt"

// Log is an io.Writer that appends to the log file and echoes to the console.
// Writes after Close go to the console only.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
	path    string
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return "log__" + t.Format(fileLayout) + ".txt"
}

// Open creates dir if needed and opens a new log file stamped with started.
// Every write is mirrored to console.
func Open(dir string, started time.Time, console io.Writer) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(started))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening build log: %w", err)
	}
	if console == nil {
		console = io.Discard
	}
	return &Log{file: f, console: console, path: path}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Write appends p to the file, then writes it to the console.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if _, err := l.file.Write(p); err != nil {
			return 0, fmt.Errorf("writing build log: %w", err)
		}
	}
	if _, err := l.console.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Printf writes a formatted line, adding a trailing newline if missing.
func (l *Log) Printf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	_, _ = io.WriteString(l, s)
}

// Close flushes and closes the file. It is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("flushing build log: %w", err)
	}
	return f.Close()
}
