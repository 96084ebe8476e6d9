// Package logger provides the logging facility used across kubestrap.
// It wraps zap with a small set of custom levels (notably SUCCESS, shown
// distinctively on the console) and supports a colored console sink plus an
// optional rotated JSON file sink.
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the kubestrap log level. Custom levels (Success, Fail) are mapped
// onto zap levels; the console encoder uses the "customlevel" field to render
// them with their own prefix and color.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	// SuccessLevel marks the completion of a significant operation.
	SuccessLevel
	WarnLevel
	ErrorLevel
	// FailLevel logs the message and then exits the process.
	FailLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case SuccessLevel:
		return "success"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FailLevel:
		return "fail"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// CapitalString returns the upper-case form used as the console prefix.
func (l Level) CapitalString() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case SuccessLevel:
		return "SUCCESS"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FailLevel:
		return "FAIL"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

func (l Level) toZapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel, SuccessLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FailLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options holds logger configuration.
type Options struct {
	ConsoleLevel  Level
	FileLevel     Level
	LogFilePath   string
	ConsoleOutput bool
	FileOutput    bool
	ColorConsole  bool
	// Timestamp format for both sinks. Defaults to time.RFC3339.
	TimestampFormat string
	// Rotation settings for the file sink.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions logs INFO+ to a colored console and keeps file output off.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel:    InfoLevel,
		FileLevel:       DebugLevel,
		LogFilePath:     "kubestrap.log",
		ConsoleOutput:   true,
		FileOutput:      false,
		ColorConsole:    true,
		TimestampFormat: time.RFC3339,
		MaxSizeMB:       50,
		MaxBackups:      3,
		MaxAgeDays:      14,
	}
}

// Logger wraps zap.SugaredLogger with the custom level methods.
type Logger struct {
	*zap.SugaredLogger
	opts Options
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops. If the
// configured sinks cannot be built, a basic stderr logger is used instead so
// logging is always available.
func Init(opts Options) {
	once.Do(func() {
		var err error
		globalLogger, err = New(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v; falling back to stderr\n", err)
			cfg := zap.NewDevelopmentConfig()
			l, _ := cfg.Build()
			globalLogger = &Logger{SugaredLogger: l.Sugar(), opts: opts}
		}
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *Logger {
	if globalLogger == nil {
		Init(DefaultOptions())
	}
	return globalLogger
}

// New creates an independent logger instance from the given options.
func New(opts Options) (*Logger, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = time.RFC3339
	}

	var cores []zapcore.Core

	if opts.ConsoleOutput {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		encCfg.TimeKey = "time"
		// The console encoder renders the level prefix itself.
		encCfg.LevelKey = ""
		encCfg.MessageKey = "msg"

		enc := newConsoleEncoder(encCfg, opts.ColorConsole)
		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= opts.ConsoleLevel.toZapLevel()
		})
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), enabler))
	}

	if opts.FileOutput {
		if opts.LogFilePath == "" {
			return nil, fmt.Errorf("log file path cannot be empty when file output is enabled")
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= opts.FileLevel.toZapLevel()
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, enabler))
	}

	if len(cores) == 0 {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), opts: opts}, nil
	}

	zl := zap.New(zapcore.NewTee(cores...))
	return &Logger{SugaredLogger: zl.Sugar(), opts: opts}, nil
}

func (l *Logger) log(level Level, template string, args ...interface{}) {
	if l == nil || l.SugaredLogger == nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", level.CapitalString(), fmt.Sprintf(template, args...))
		if level == FailLevel {
			os.Exit(1)
		}
		return
	}

	msg := fmt.Sprintf(template, args...)
	field := zap.String(customLevelKey, level.CapitalString())

	switch level {
	case DebugLevel:
		l.SugaredLogger.Debugw(msg, field)
	case InfoLevel, SuccessLevel:
		l.SugaredLogger.Infow(msg, field)
	case WarnLevel:
		l.SugaredLogger.Warnw(msg, field)
	case ErrorLevel:
		l.SugaredLogger.Errorw(msg, field)
	case FailLevel:
		l.SugaredLogger.Fatalw(msg, field)
	default:
		l.SugaredLogger.Infow(msg, field)
	}
}

// Debugf logs at DebugLevel.
func (l *Logger) Debugf(template string, args ...interface{}) {
	l.log(DebugLevel, template, args...)
}

// Infof logs at InfoLevel.
func (l *Logger) Infof(template string, args ...interface{}) {
	l.log(InfoLevel, template, args...)
}

// Successf logs at SuccessLevel, rendered distinctively on the console.
func (l *Logger) Successf(template string, args ...interface{}) {
	l.log(SuccessLevel, template, args...)
}

// Warnf logs at WarnLevel.
func (l *Logger) Warnf(template string, args ...interface{}) {
	l.log(WarnLevel, template, args...)
}

// Errorf logs at ErrorLevel.
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.log(ErrorLevel, template, args...)
}

// Failf logs at FailLevel and exits the process. Reserved for configuration
// errors detected at startup.
func (l *Logger) Failf(template string, args ...interface{}) {
	l.log(FailLevel, template, args...)
}

// With returns a logger scoped with additional structured fields.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), opts: l.opts}
}

// Sync flushes buffered entries. Call before process exit.
func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}

// Package-level helpers operating on the global logger.

func Debug(template string, args ...interface{})   { Get().log(DebugLevel, template, args...) }
func Info(template string, args ...interface{})    { Get().log(InfoLevel, template, args...) }
func Success(template string, args ...interface{}) { Get().log(SuccessLevel, template, args...) }
func Warn(template string, args ...interface{})    { Get().log(WarnLevel, template, args...) }
func Error(template string, args ...interface{})   { Get().log(ErrorLevel, template, args...) }
func Fail(template string, args ...interface{})    { Get().log(FailLevel, template, args...) }

// SyncGlobal flushes the global logger.
func SyncGlobal() error { return Get().Sync() }
