package audit

import (
	"io"
	"log"
	"os"
)

// Logger emits relay audit events. A nil *Logger discards everything, so
// components can take one unconditionally.
type Logger struct {
	out     *log.Logger
	enabled bool
}

// New returns a Logger writing to w when enabled.
func New(w io.Writer, enabled bool) *Logger {
	return &Logger{
		out:     log.New(w, "[AUDIT] ", log.LstdFlags),
		enabled: enabled,
	}
}

// Logf records one audit event.
func (l *Logger) Logf(format string, args ...any) {
	if l == nil || !l.enabled || l.out == nil {
		return
	}
	l.out.Printf(format, args...)
}

var defaultLogger = New(os.Stderr, os.Getenv("SMTP_DEBUG") == "1")

// Default returns the process-wide audit logger, gated by SMTP_DEBUG=1.
func Default() *Logger {
	return defaultLogger
}

// Set toggles the default logger.
func Set(enabled bool) {
	defaultLogger.enabled = enabled
}

// Enabled reports whether the default logger emits events.
func Enabled() bool {
	return defaultLogger.enabled
}

// RefreshFromEnv re-reads SMTP_DEBUG; used after godotenv loads an env file.
func RefreshFromEnv() {
	defaultLogger.enabled = os.Getenv("SMTP_DEBUG") == "1"
}

// Log prints a debug audit message through the default logger.
func Log(format string, args ...any) {
	defaultLogger.Logf(format, args...)
}
