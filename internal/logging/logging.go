package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

type Logger interface {
	Log(level LogLevel, format string, args ...interface{})
}

// ParseLogLevel accepts the level names case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return level, nil
	}
	return "", fmt.Errorf("unknown log level: %q", s)
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

type DefaultLogger struct {
	logMode LogLevel
	logger  *zap.SugaredLogger
}

// NewDefaultLogger logs to stdout and, when logFile is set, appends to logFile.
func NewDefaultLogger(mode LogLevel, logFile string) (*DefaultLogger, error) {
	outputPaths := []string{"stdout"}
	if logFile != "" {
		outputPaths = append(outputPaths, logFile)
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(mode.zapLevel()),
		DisableCaller:     mode != LogLevelDebug,
		DisableStacktrace: true,
		Encoding:          "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("cannot build logger: %w", err)
	}

	return &DefaultLogger{
		logMode: mode,
		logger:  logger.Named("hpack").Sugar(),
	}, nil
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *DefaultLogger {
	return &DefaultLogger{
		logMode: LogLevelError,
		logger:  zap.NewNop().Sugar(),
	}
}

func (l *DefaultLogger) Log(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogLevelDebug:
		l.logger.Debugf(format, args...)
	case LogLevelInfo:
		l.logger.Infof(format, args...)
	case LogLevelWarn:
		l.logger.Warnf(format, args...)
	default:
		l.logger.Errorf(format, args...)
	}
}

// Level is the lowest level the logger writes.
func (l *DefaultLogger) Level() LogLevel {
	return l.logMode
}

func (l *DefaultLogger) Sync() error {
	return l.logger.Sync()
}
