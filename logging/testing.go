package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through `tb.Log` so that log lines are attached
// to the test that produced them, including tests running in parallel.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

// Write outputs the log entry to the underlying test object `Log` method.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	toPrint, err := formatEntry(entry, fields)
	tapp.tb.Log(toPrint)
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}
