// Package log is a thin structured-logging facade over zap, in the shape
// the rest of this module expects: a minimal Logger interface, a With()
// decorator for attaching static or lazily-evaluated fields, and a package-
// level default instance that can be swapped at startup.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging severity, ordered low to high.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the narrow contract the rest of the module depends on. keyvals
// is an alternating key/value slice, following the same convention as
// go-kratos's log.Logger.
type Logger interface {
	Log(level Level, keyvals ...any) error
}

// FileConfig describes the rotating-file sink a Logger writes to; its fields
// mirror the same-named fields of conf.Logger.
type FileConfig struct {
	Path       string
	Level      string
	MaxSize    int
	MaxAge     int
	MaxBackups int
	Compress   bool
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewZapLogger builds a Logger backed by zap, rotating through lumberjack
// when cfg.Path is set and writing to stderr otherwise.
func NewZapLogger(cfg *FileConfig) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if cfg != nil && cfg.Path != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	level := zapcore.InfoLevel
	if cfg != nil && cfg.Level != "" {
		level = parseLevel(cfg.Level)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &zapLogger{z: zap.New(core)}
}

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Log(level Level, keyvals ...any) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING")
	}
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keyvals[i]), keyvals[i+1]))
	}
	if ce := l.z.Check(level.zapLevel(), ""); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

// valuer is a lazily-evaluated field value, resolved at log time.
type valuer func() any

// Timestamp returns a valuer formatting the current time with layout.
func Timestamp(layout string) valuer {
	return func() any { return timeNowFormatted(layout) }
}

// Caller returns a valuer reporting the call site skip frames up from Log.
func Caller(depth int) valuer {
	return func() any { return callerString(depth) }
}

type loggerContext struct {
	logger Logger
	prefix []any
}

// With decorates l with static keyvals, or valuer funcs re-evaluated on
// every call, and returns the combined Logger.
func With(l Logger, keyvals ...any) Logger {
	if c, ok := l.(*loggerContext); ok {
		merged := make([]any, 0, len(c.prefix)+len(keyvals))
		merged = append(merged, c.prefix...)
		merged = append(merged, keyvals...)
		return &loggerContext{logger: c.logger, prefix: merged}
	}
	return &loggerContext{logger: l, prefix: keyvals}
}

func (c *loggerContext) Log(level Level, keyvals ...any) error {
	bound := make([]any, 0, len(c.prefix)+len(keyvals))
	for i := 0; i < len(c.prefix); i += 2 {
		v := c.prefix[i+1]
		if fn, ok := v.(valuer); ok {
			v = fn()
		}
		bound = append(bound, c.prefix[i], v)
	}
	bound = append(bound, keyvals...)
	return c.logger.Log(level, bound...)
}

var (
	mu            sync.RWMutex
	DefaultLogger Logger = NewZapLogger(nil)
)

// SetLogger replaces the package-level default logger.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = l
}

// GetLogger returns the current package-level default logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return DefaultLogger
}
