// Package logging provides structured, component-scoped logging for the
// gateway. Every line carries a timestamp, the component name, a level tag,
// and the shared run id so one gateway run can be traced across components.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes level-tagged log entries for one gateway component.
type Logger struct {
	runID     string
	component string

	mu        sync.Mutex
	logger    *log.Logger
	file      *os.File
	closeOnce sync.Once
}

var (
	// Global run ID shared by every component logger in this process
	runID     string
	runIDOnce sync.Once
)

func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// NewLogger creates a logger for a component that writes to stderr.
func NewLogger(component string) *Logger {
	return NewLoggerTo(component, os.Stderr)
}

// NewLoggerTo creates a logger for a component writing to w. Tests pass
// io.Discard or a buffer.
func NewLoggerTo(component string, w io.Writer) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(w, "", 0), // timestamps are formatted here, not by log
	}
}

// NewFileLogger creates a logger that appends to <run-id>-gateway.log in
// dir, creating the directory if needed. If the file cannot be opened it
// falls back to stderr and returns the error alongside the usable logger.
func NewFileLogger(component, dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return NewLogger(component), fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-gateway.log", getRunID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return NewLogger(component), fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(file, "", 0),
		file:      file,
	}, nil
}

func (l *Logger) emit(level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, v...)
	l.logger.Printf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...any) {
	l.emit("DEBUG", format, v...)
}

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...any) {
	l.emit("INFO", format, v...)
}

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...any) {
	l.emit("WARN", format, v...)
}

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...any) {
	l.emit("ERROR", format, v...)
}

// RunID returns the shared run id for this process.
func (l *Logger) RunID() string {
	return l.runID
}

// Close closes the underlying log file, if any. Safe to call repeatedly.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
