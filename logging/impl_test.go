package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type detection struct {
	Side     string
	Distance float64
	private  int
}

// assertLogMatches checks a console line field by field. Timestamps are only checked for length
// and line numbers only for presence.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, _, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[3], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"vision", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(notStdout)}, nil}

	logger.Info("goal detector", " started")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	vision	logging/impl_test.go:67	goal detector started`)

	logger.Infof("found %d goals", 2)
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	vision	logging/impl_test.go:67	found 2 goals`)

	logger.Debugw("goal", "detection", detection{"left", 3.5, 1})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	DEBUG	vision	logging/impl_test.go:67	goal	{"detection":{"Side":"left","Distance":3.5}}`)

	logger.Warnw("unpaired", "key")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	WARN	vision	logging/impl_test.go:67	unpaired	{"key":"unpaired log key"}`)
}

func TestLevelFiltering(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"vision", NewAtomicLevelAt(WARN), true, []Appender{NewWriterAppender(notStdout)}, nil}

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Error("kept")
	test.That(t, notStdout.String(), test.ShouldContainSubstring, "kept")

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestSublogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("goals")
	test.That(t, sub.Name(), test.ShouldEqual, "goals")
	subsub := sub.Sublogger("ransac")
	test.That(t, subsub.Name(), test.ShouldEqual, "goals.ransac")

	subsub.SetLevel(ERROR)
	test.That(t, sub.GetLevel(), test.ShouldEqual, DEBUG)

	sub.Infow("fitted", "models", 2)
	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "goals")
	test.That(t, entries[0].Level, test.ShouldEqual, zapcore.InfoLevel)
	test.That(t, entries[0].ContextMap()["models"], test.ShouldEqual, int64(2))
}

func TestWithFields(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	cam := logger.Sublogger("cam0")
	frame := cam.WithFields("camera", 0, "frame", 12)
	test.That(t, frame.Name(), test.ShouldEqual, "cam0")

	frame.Debugw("classified", "segments", 40)
	cam.Debug("idle")

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].ContextMap(), test.ShouldResemble, map[string]interface{}{
		"camera": int64(0), "frame": int64(12), "segments": int64(40),
	})
	test.That(t, entries[1].ContextMap(), test.ShouldBeEmpty)

	// The derived logger follows level changes made on the logger it came from.
	cam.SetLevel(ERROR)
	frame.Info("dropped")
	test.That(t, observed.Len(), test.ShouldEqual, 2)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in    string
		level Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.level)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}
