package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
	z string
}

type User struct {
	Name string
}

type StructWithStruct struct {
	x int
	Y User
	z string
}

type StructWithAnonymousStruct struct {
	x int
	Y struct {
		Y1 string
	}
	Z string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	// `Helper` will result in test failures being associated with the callers line number. It's
	// more useful to report which `assertLogMatches` call failed rather than which assertion
	// inside this function. Maybe.
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	// Verify the filename matches exactly.
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	// Verify the line number is in fact a number, but no more.
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	// Structured logging with the "w" API. E.g: `Debugw` has an extra tab delimited output.
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	// JSON encoding of maps can be unpredictable because map iteration order can change between
	// runs. Parse the output into maps and assert on map equality.
	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[4]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[4]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

// TestConsoleOutputFormat asserts the console appender's tab delimited format. E.g:
//
//	2023-10-30T09:12:09.459-0400	INFO	logging/impl_test.go:87	impl Info log
func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	impl := &impl{name: "", level: NewAtomicLevelAt(DEBUG), appenders: []Appender{NewWriterAppender(notStdout)}}

	impl.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459-0400	INFO	logging/impl_test.go:67	impl Info log`)

	impl.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764-0400	INFO	logging/impl_test.go:131	impl infof log`)

	impl.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	INFO	logging/impl_test.go:132	impl logw	{"key":"value"}`)

	impl.Infow("impl logw", "key", "val", "StructWithAnonymousStruct", StructWithAnonymousStruct{1, struct{ Y1 string }{"y1"}, "foo"})
	//nolint:lll
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	logging/impl_test.go:121	impl logw	{"StructWithAnonymousStruct":{"Y":{"Y1":"y1"},"Z":"foo"},"key":"val"}`)

	impl.Infow("StructWithStruct", "key", "val", "StructWithStruct", StructWithStruct{1, User{"alice"}, "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	logging/impl_test.go:123	StructWithStruct	{"StructWithStruct":{"Y":{"Name":"alice"}},"key":"val"}`)

	impl.Infow("BasicStruct", "implOneKey", "1val", "BasicStruct", BasicStruct{1, "alice", "foo"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	logging/impl_test.go:125	BasicStruct	{"BasicStruct":{"X":1},"implOneKey":"1val"}`)

	impl.Infow("impl logw", "key", "val", "fmt.Sprintf", fmt.Sprintf("%+v", BasicStruct{1, "alice", "foo"}))
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	logging/impl_test.go:127	impl logw	{"fmt.Sprintf":"{X:1 y:alice z:foo}","key":"val"}`)

	// Debug is filtered once the level is raised.
	impl.SetLevel(WARN)
	impl.Debug("dropped")
	impl.Info("dropped")
	impl.Warn("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	WARN	logging/impl_test.go:127	kept`)
}

func TestDebugModeContext(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{name: "", level: NewAtomicLevelAt(ERROR), appenders: []Appender{NewWriterAppender(notStdout)}}

	logger.CDebug(context.Background(), "dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	test.That(t, GetName(ctx), test.ShouldHaveLength, 6)

	logger.CDebugf(ctx, "debug %d", 1)
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	DEBUG	logging/impl_test.go:127	debug 1`)
}

func TestSubloggerAndFields(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := WithFields(logger.Sublogger("web"), "request_id", "abc")
	sub.Infow("handled", "status", 200)

	test.That(t, logs.FilterMessage("handled").Len(), test.ShouldEqual, 1)
	entry := logs.FilterMessage("handled").All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "web")
	test.That(t, entry.ContextMap()["request_id"], test.ShouldEqual, "abc")
	test.That(t, entry.ContextMap()["status"], test.ShouldEqual, int64(200))

	// Static fields do not leak back into the parent.
	logger.Infow("parent")
	test.That(t, logs.FilterMessage("parent").All()[0].ContextMap(), test.ShouldBeEmpty)
}

func TestLevelFromString(t *testing.T) {
	for str, expected := range map[string]Level{"debug": DEBUG, "INFO": INFO, "warning": WARN, "Error": ERROR} {
		level, err := LevelFromString(str)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}

func TestCallerToString(t *testing.T) {
	test.That(t, callerToString(&zapcore.EntryCaller{File: "/a/b/logging/impl.go", Line: 3}),
		test.ShouldEqual, "logging/impl.go:3")
	test.That(t, callerToString(&zapcore.EntryCaller{File: "impl.go", Line: 3}), test.ShouldEqual, "impl.go:3")
}
