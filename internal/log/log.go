package log

import (
	stdlog "log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.SugaredLogger
	base       *zap.Logger
	loggerOnce sync.Once
	atomicLvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the process-wide zap logger (JSON to stderr, ISO8601 timestamps).
func initLogger() {
	loggerOnce.Do(func() {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		config := zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Level = atomicLvl
		config.Sampling = nil

		l, err := config.Build()
		if err != nil {
			l = zap.NewNop()
		}
		// The facade functions add one frame; Std callers do not.
		base = l
		logger = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	})
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atomicLvl.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atomicLvl.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atomicLvl.SetLevel(zapcore.ErrorLevel)
	default:
		atomicLvl.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	initLogger()
	logger.Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logger.Errorw(msg, extended...)
}

// Std returns a standard library logger writing at warn level, for
// libraries that only accept *log.Logger.
func Std(prefix string) *stdlog.Logger {
	initLogger()
	return newStd(base, prefix)
}

func newStd(l *zap.Logger, prefix string) *stdlog.Logger {
	std, err := zap.NewStdLogAt(l.Named(prefix), zapcore.WarnLevel)
	if err != nil {
		return stdlog.New(stdlog.Writer(), prefix+" ", stdlog.LstdFlags)
	}
	return std
}

// Sync flushes buffered log entries; call once before exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
