// ABOUTME: Structured logging with verbosity control and level-based output
// ABOUTME: Scoped loggers tag every line with a connection or component prefix

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	verbose atomic.Bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose (DEBUG) logging
func SetVerbose(v bool) {
	verbose.Store(v)
}

// IsVerbose returns current verbose setting
func IsVerbose() bool {
	return verbose.Load()
}

// SetOutput sets the output destination for logs
func SetOutput(w io.Writer) {
	if w == nil {
		output = os.Stderr
		log.SetOutput(os.Stderr)
	} else {
		output = w
		log.SetOutput(w)
	}
}

// Debug logs at DEBUG level (only shown when verbose)
func Debug(format string, args ...interface{}) {
	if IsVerbose() {
		msg := fmt.Sprintf(format, args...)
		log.Printf("[DEBUG] %s", msg)
	}
}

// Info logs at INFO level (always shown)
func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[INFO] %s", msg)
}

// Warn logs at WARN level (always shown)
func Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[WARN] %s", msg)
}

// Error logs at ERROR level (always shown)
func Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[ERROR] %s", msg)
}

// Logger prefixes every message, e.g. "[conn:1a2b3c4d]".
type Logger struct {
	prefix string
}

// Prefixed returns a logger that tags its lines with prefix.
func Prefixed(prefix string) *Logger {
	return &Logger{prefix: "[" + prefix + "] "}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	Debug(l.prefix+format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	Info(l.prefix+format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	Warn(l.prefix+format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	Error(l.prefix+format, args...)
}

// Preview shortens a message body for log lines.
func Preview(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
