// Package log provides leveled key/value logging for the plugin host.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the logging interface passed to host services.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs warn-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// Level represents the log level.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// WriterLogger implements Logger with line-oriented output to an io.Writer.
type WriterLogger struct {
	mu      *sync.Mutex
	w       io.Writer
	baseKVs []any
	debug   bool
}

// New creates a WriterLogger writing to w. Debug messages are suppressed
// unless debug is true.
func New(w io.Writer, debug bool) *WriterLogger {
	return &WriterLogger{
		mu:    &sync.Mutex{},
		w:     w,
		debug: debug,
	}
}

// NewStderr creates a WriterLogger writing to stderr.
func NewStderr(debug bool) *WriterLogger {
	return New(os.Stderr, debug)
}

// Debug logs debug-level messages.
func (l *WriterLogger) Debug(msg string, keysAndValues ...any) {
	if !l.debug {
		return
	}
	l.write(LevelDebug, msg, keysAndValues)
}

// Info logs info-level messages.
func (l *WriterLogger) Info(msg string, keysAndValues ...any) {
	l.write(LevelInfo, msg, keysAndValues)
}

// Warn logs warn-level messages.
func (l *WriterLogger) Warn(msg string, keysAndValues ...any) {
	l.write(LevelWarn, msg, keysAndValues)
}

// Error logs error-level messages.
func (l *WriterLogger) Error(msg string, keysAndValues ...any) {
	l.write(LevelError, msg, keysAndValues)
}

// With returns a new logger carrying additional key-value pairs.
func (l *WriterLogger) With(keysAndValues ...any) Logger {
	kvs := make([]any, 0, len(l.baseKVs)+len(keysAndValues))
	kvs = append(kvs, l.baseKVs...)
	kvs = append(kvs, keysAndValues...)
	return &WriterLogger{
		mu:      l.mu,
		w:       l.w,
		baseKVs: kvs,
		debug:   l.debug,
	}
}

func (l *WriterLogger) write(level Level, msg string, kvs []any) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(string(level))
	b.WriteString("] ")
	b.WriteString(msg)
	formatKVs(&b, l.baseKVs)
	formatKVs(&b, kvs)
	b.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.w, b.String())
}

func formatKVs(b *strings.Builder, kvs []any) {
	for i := 0; i < len(kvs); i += 2 {
		key := fmt.Sprintf("%v", kvs[i])
		value := "MISSING"
		if i+1 < len(kvs) {
			value = fmt.Sprintf("%v", kvs[i+1])
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(value)
	}
}

// Nop is a Logger that discards everything. Useful as a default and in tests.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}

// With returns the logger unchanged.
func (n Nop) With(...any) Logger { return n }
