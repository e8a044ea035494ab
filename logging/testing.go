package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// fieldsEncoderConfig serializes only the fields of an entry, on one line.
var fieldsEncoderConfig = zapcore.EncoderConfig{SkipLineEnding: true}

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an Appender that writes each entry through tb.Log so output is
// attributed to the test that produced it.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	columns := []string{
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		columns = append(columns, callerToString(&entry.Caller))
	}
	columns = append(columns, entry.Message)

	var encodeErr error
	if len(fields) > 0 {
		buf, err := zapcore.NewJSONEncoder(fieldsEncoderConfig).EncodeEntry(zapcore.Entry{}, fields)
		if err == nil {
			columns = append(columns, buf.String())
			buf.Free()
		}
		encodeErr = err
	}
	tapp.tb.Log(strings.Join(columns, "\t"))
	return encodeErr
}

func (tapp *testAppender) Sync() error {
	return nil
}
