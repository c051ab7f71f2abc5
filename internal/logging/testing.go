package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry at Debug and above. It skips redaction and
// sampling so tests see exactly what the code logged.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.logs.All()
}

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessage(msg)
}

func (t *TestLogger) Reset() {
	t.logs.TakeAll()
}

func (t *TestLogger) find(level zapcore.Level, substr string) bool {
	for _, e := range t.logs.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if !t.find(level, substr) {
		tb.Errorf("no %s entry containing %q; got %s", level, substr, t.summary())
	}
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if t.find(level, substr) {
		tb.Errorf("unexpected %s entry containing %q", level, substr)
	}
}

// AssertField fails tb unless an entry with message msg carries key with a
// value that prints as want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v; got %s", msg, key, want, t.summary())
}

func (t *TestLogger) summary() string {
	var b strings.Builder
	for _, e := range t.logs.All() {
		fmt.Fprintf(&b, "\n  %s %q %v", e.Level, e.Message, e.ContextMap())
	}
	return b.String()
}
