package logger

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/arloliu/edgeshard/types"
)

// Entry is one message captured by a TestLogger.
type Entry struct {
	Level   string
	Message string
	Fields  []any
}

// TestLogger implements types.Logger on top of testing.TB and remembers every
// message so tests can assert on what was logged.
type TestLogger struct {
	tb      testing.TB
	mu      sync.Mutex
	entries []Entry
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a test logger writing through tb.Logf.
//
// Parameters:
//   - tb: The test or benchmark to write logs to
//
// Returns:
//   - *TestLogger: A new logger instance
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    log := logger.NewTest(t)
//	    ing, _ := edgeshard.New(&cfg, cl, tr, edgeshard.WithLogger(log))
//	    // ...
//	    require.True(t, log.Has("total processed edges"))
//	}
func NewTest(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.record("DEBUG", msg, keysAndValues)
}

// Info logs an info-level message with optional key-value pairs.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.record("INFO", msg, keysAndValues)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.record("WARN", msg, keysAndValues)
}

// Error logs an error-level message with optional key-value pairs.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.record("ERROR", msg, keysAndValues)
}

// Fatal logs a fatal-level message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.record("FATAL", msg, keysAndValues)
	l.tb.FailNow()
}

// Entries returns a copy of every captured message.
func (l *TestLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Has reports whether a message containing substr was logged.
func (l *TestLogger) Has(substr string) bool {
	_, ok := l.Find(substr)
	return ok
}

// Find returns the first entry whose message contains substr.
func (l *TestLogger) Find(substr string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if strings.Contains(e.Message, substr) {
			return e, true
		}
	}

	return Entry{}, false
}

// Field returns the value logged under key in e.
func (e Entry) Field(key string) (any, bool) {
	for i := 0; i+1 < len(e.Fields); i += 2 {
		if k, ok := e.Fields[i].(string); ok && k == key {
			return e.Fields[i+1], true
		}
	}

	return nil, false
}

func (l *TestLogger) record(level, msg string, keysAndValues []any) {
	l.tb.Helper()
	l.tb.Logf("%s: %s %s", level, msg, formatKeyValues(keysAndValues))

	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: keysAndValues})
	l.mu.Unlock()
}

// formatKeyValues formats key-value pairs for logging.
func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v ", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing> ", keysAndValues[i])
		}
	}

	return b.String()
}
