package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	impl struct {
		name  string
		level AtomicLevel
		inUTC bool
		// static fields are appended to every structured entry. See `WithFields`.
		static []zapcore.Field

		appenders []Appender
	}

	logEntry struct {
		zapcore.Entry
		fields []zapcore.Field
	}
)

// WithFields returns a logger that shares the appenders and level of `logger` and adds the
// key/value pairs to every entry it writes. Loggers not created by this package are returned
// unchanged.
func WithFields(logger Logger, keysAndValues ...interface{}) Logger {
	imp, ok := logger.(*impl)
	if !ok {
		return logger
	}
	static := make([]zapcore.Field, 0, len(imp.static)+len(keysAndValues)/2)
	static = append(static, imp.static...)
	static = append(static, toFields(keysAndValues)...)
	return &impl{
		name:      imp.name,
		level:     imp.level,
		inUTC:     imp.inUTC,
		static:    static,
		appenders: imp.appenders,
	}
}

func (imp *impl) newEntry(level Level, msg string) *logEntry {
	ret := &logEntry{}
	ret.Time = time.Now()
	ret.LoggerName = imp.name
	ret.Caller = getCaller()
	ret.Level = level.AsZap()
	ret.Message = msg
	if len(imp.static) > 0 {
		ret.fields = append(ret.fields, imp.static...)
	}
	return ret
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.GetLevel().AsZap()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	return &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		static:    imp.static,
		appenders: imp.appenders,
	}
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.AsZap().Named(name)
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.AsZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.AsZap().WithOptions(opts...)
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	// Appenders that are full zap cores (observers in tests) are teed into the returned logger.
	var copiedCores []zapcore.Core
	for _, appender := range imp.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			copiedCores = append(copiedCores, core)
		}
	}

	config := NewZapLoggerConfig()
	config.Level = GlobalLogLevel
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)
	for _, core := range copiedCores {
		ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}

	return ret
}

func (imp *impl) shouldLog(logLevel Level) bool {
	if GlobalLogLevel.Level() == zapcore.DebugLevel {
		return true
	}

	return logLevel >= imp.level.Get()
}

func (imp *impl) write(entry *logEntry) {
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}

	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// Constructs the log message by forwarding to `fmt.Sprint`.
func (imp *impl) format(logLevel Level, args ...interface{}) *logEntry {
	return imp.newEntry(logLevel, fmt.Sprint(args...))
}

// Constructs the log message by forwarding to `fmt.Sprintf`.
func (imp *impl) formatf(logLevel Level, template string, args ...interface{}) *logEntry {
	return imp.newEntry(logLevel, fmt.Sprintf(template, args...))
}

// Pairs up `keysAndValues` as zap fields. Values are json serialized, public fields only.
func (imp *impl) formatw(logLevel Level, msg string, keysAndValues ...interface{}) *logEntry {
	entry := imp.newEntry(logLevel, msg)
	entry.fields = append(entry.fields, toFields(keysAndValues)...)
	return entry
}

func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2)
	for keyIdx := 0; keyIdx < len(keysAndValues); keyIdx += 2 {
		keyObj := keysAndValues[keyIdx]
		var keyStr string
		if stringer, ok := keyObj.(fmt.Stringer); ok {
			keyStr = stringer.String()
		} else {
			keyStr = fmt.Sprintf("%v", keyObj)
		}

		if keyIdx+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(keyStr, keysAndValues[keyIdx+1]))
		} else {
			// An unpaired key is kept so a logging mistake is visible in the output.
			fields = append(fields, zap.Any(keyStr, errors.New("unpaired log key")))
		}
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.write(imp.format(DEBUG, args...))
	}
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	if imp.shouldLog(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.format(DEBUG, args...))
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.write(imp.formatf(DEBUG, template, args...))
	}
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if imp.shouldLog(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.formatf(DEBUG, template, args...))
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.write(imp.formatw(DEBUG, msg, keysAndValues...))
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.formatw(DEBUG, msg, keysAndValues...))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.write(imp.format(INFO, args...))
	}
}

func (imp *impl) CInfo(ctx context.Context, args ...interface{}) {
	if imp.shouldLog(INFO) || IsDebugMode(ctx) {
		imp.write(imp.format(INFO, args...))
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.write(imp.formatf(INFO, template, args...))
	}
}

func (imp *impl) CInfof(ctx context.Context, template string, args ...interface{}) {
	if imp.shouldLog(INFO) || IsDebugMode(ctx) {
		imp.write(imp.formatf(INFO, template, args...))
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.write(imp.formatw(INFO, msg, keysAndValues...))
	}
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) || IsDebugMode(ctx) {
		imp.write(imp.formatw(INFO, msg, keysAndValues...))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.write(imp.format(WARN, args...))
	}
}

func (imp *impl) CWarn(ctx context.Context, args ...interface{}) {
	if imp.shouldLog(WARN) || IsDebugMode(ctx) {
		imp.write(imp.format(WARN, args...))
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.write(imp.formatf(WARN, template, args...))
	}
}

func (imp *impl) CWarnf(ctx context.Context, template string, args ...interface{}) {
	if imp.shouldLog(WARN) || IsDebugMode(ctx) {
		imp.write(imp.formatf(WARN, template, args...))
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.write(imp.formatw(WARN, msg, keysAndValues...))
	}
}

func (imp *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(WARN) || IsDebugMode(ctx) {
		imp.write(imp.formatw(WARN, msg, keysAndValues...))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.write(imp.format(ERROR, args...))
	}
}

func (imp *impl) CError(ctx context.Context, args ...interface{}) {
	if imp.shouldLog(ERROR) || IsDebugMode(ctx) {
		imp.write(imp.format(ERROR, args...))
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.write(imp.formatf(ERROR, template, args...))
	}
}

func (imp *impl) CErrorf(ctx context.Context, template string, args ...interface{}) {
	if imp.shouldLog(ERROR) || IsDebugMode(ctx) {
		imp.write(imp.formatf(ERROR, template, args...))
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.write(imp.formatw(ERROR, msg, keysAndValues...))
	}
}

func (imp *impl) CErrorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(ERROR) || IsDebugMode(ctx) {
		imp.write(imp.formatw(ERROR, msg, keysAndValues...))
	}
}

// These Fatal* methods log as errors then exit the process.
func (imp *impl) Fatal(args ...interface{}) {
	imp.write(imp.format(ERROR, args...))
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.write(imp.formatf(ERROR, template, args...))
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.write(imp.formatw(ERROR, msg, keysAndValues...))
	os.Exit(1)
}

// getCaller reports the file/line of the code that called a logging method. The frames skipped
// are getCaller, newEntry, format* and the logging method itself.
func getCaller() zapcore.EntryCaller {
	var ok bool
	var entryCaller zapcore.EntryCaller
	const skipToLogCaller = 4
	entryCaller.PC, entryCaller.File, entryCaller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return entryCaller
	}
	entryCaller.Defined = true

	if runtimeFunc := runtime.FuncForPC(entryCaller.PC); runtimeFunc != nil {
		entryCaller.Function = runtimeFunc.Name()
	}

	return entryCaller
}
