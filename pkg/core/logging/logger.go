// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     logging
// Description: Structured logger with key/value facade
// Author:      Mike Stoffels with Claude
// Created:     2026-09-14
// License:     MIT
// ============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Config holds configuration for creating loggers
type Config struct {
	// Log level (trace, debug, info, warn, error)
	Level string

	// Output format: "json" or "text"
	Format string

	// Output destination (default: stderr)
	Output io.Writer

	// EnableCaller adds file:line of the log call
	EnableCaller bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: os.Stderr,
	}
}

var (
	defaultsMu sync.RWMutex
	defaults   = DefaultConfig()
)

// Configure sets the process-wide defaults used by New
func Configure(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	defaultsMu.Lock()
	defaults = cfg
	defaultsMu.Unlock()
}

// OpenFile opens (or creates) a log file for appending and returns it as
// an additional output next to stderr.
func OpenFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Logger is a named structured logger
type Logger struct {
	mu        *sync.Mutex
	level     Level
	formatter Formatter
	output    io.Writer
	name      string
	fields    Fields
	caller    bool
}

// New creates a named logger using the process-wide defaults
func New(name string) *Logger {
	defaultsMu.RLock()
	cfg := defaults
	defaultsMu.RUnlock()
	return NewWithConfig(name, cfg)
}

// NewWithConfig creates a named logger with an explicit configuration
func NewWithConfig(name string, cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		mu:        &sync.Mutex{},
		level:     ParseLevel(cfg.Level),
		formatter: formatterFor(ParseFormat(cfg.Format)),
		output:    out,
		name:      name,
		caller:    cfg.EnableCaller,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return NewWithConfig("", Config{Level: "fatal", Output: io.Discard})
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// Level returns the minimum level
func (l *Logger) Level() Level {
	return l.level
}

// WithLevel returns a copy of the logger with the given minimum level
func (l *Logger) WithLevel(level Level) *Logger {
	clone := l.clone()
	clone.level = level
	return clone
}

// With returns a copy of the logger that adds the key/value pairs to every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	clone := l.clone()
	for k, v := range toFields(keysAndValues...) {
		clone.fields[k] = v
	}
	return clone
}

// Named returns a child logger ("parent.child")
func (l *Logger) Named(child string) *Logger {
	clone := l.clone()
	if clone.name == "" {
		clone.name = child
	} else {
		clone.name = clone.name + "." + child
	}
	return clone
}

func (l *Logger) clone() *Logger {
	fields := make(Fields, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		mu:        l.mu,
		level:     l.level,
		formatter: l.formatter,
		output:    l.output,
		name:      l.name,
		fields:    fields,
		caller:    l.caller,
	}
}

// Trace logs a trace message
func (l *Logger) Trace(msg string, keysAndValues ...interface{}) {
	l.log(LevelTrace, msg, keysAndValues)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *Logger) log(level Level, msg string, keysAndValues []interface{}) {
	if l == nil || level < l.level {
		return
	}

	fields := make(Fields, len(l.fields)+len(keysAndValues)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range toFields(keysAndValues...) {
		fields[k] = v
	}

	entry := &Entry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Logger:    l.name,
		Fields:    fields,
	}
	if l.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	data, err := l.formatter.Format(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	_, _ = l.output.Write(data)
	l.mu.Unlock()
}

// toFields converts key-value pairs to Fields. A trailing key without value
// is recorded under "!BADKEY".
func toFields(keysAndValues ...interface{}) Fields {
	fields := make(Fields, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 >= len(keysAndValues) {
			fields["!BADKEY"] = key
			break
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
