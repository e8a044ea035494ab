package config

import (
	"sync"

	"go.uber.org/zap/zapcore"

	"go.viam.com/boarddemo/logging"
)

// debugSources tracks the two places debug logging can be requested from. The global level is
// debug while either one asks for it.
type debugSources struct {
	mu      sync.Mutex
	logger  logging.Logger
	cmdLine bool
	file    bool
}

var levelSettings debugSources

func (ds *debugSources) levelInLock() zapcore.Level {
	if ds.cmdLine || ds.file {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// InitLoggingSettings records the command line debug flag and sets the global level from it.
func InitLoggingSettings(logger logging.Logger, cmdLineDebugFlag bool) {
	levelSettings.mu.Lock()
	defer levelSettings.mu.Unlock()
	levelSettings.logger = logger
	levelSettings.cmdLine = cmdLineDebugFlag
	logging.GlobalLogLevel.SetLevel(levelSettings.levelInLock())
	logger.Infow("log level initialized", "level", logging.GlobalLogLevel.Level())
}

// UpdateFileConfigDebug applies the config file's debug flag, e.g. after the file is re-read.
func UpdateFileConfigDebug(fileDebug bool) {
	levelSettings.mu.Lock()
	defer levelSettings.mu.Unlock()
	levelSettings.file = fileDebug

	level := levelSettings.levelInLock()
	if logging.GlobalLogLevel.Level() == level {
		return
	}
	if levelSettings.logger != nil {
		levelSettings.logger.Infow("log level changed", "level", level)
	}
	logging.GlobalLogLevel.SetLevel(level)
}
