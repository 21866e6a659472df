package log

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"
)

func timeNowFormatted(layout string) string {
	return time.Now().Format(layout)
}

func callerString(depth int) string {
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// DefaultMessageKey is the field key Helper's *f methods store the
// formatted message under.
const DefaultMessageKey = "msg"

// Helper wraps a Logger with printf-style convenience methods.
type Helper struct {
	logger Logger
	msgKey string
}

// Option configures a Helper.
type Option func(*Helper)

// WithMessageKey overrides the field key used for the formatted message.
func WithMessageKey(key string) Option {
	return func(h *Helper) { h.msgKey = key }
}

// NewHelper wraps logger with the *f convenience methods.
func NewHelper(logger Logger, opts ...Option) *Helper {
	h := &Helper{logger: logger, msgKey: DefaultMessageKey}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Helper) log(level Level, a ...any) {
	_ = h.logger.Log(level, h.msgKey, fmt.Sprint(a...))
}

func (h *Helper) logf(level Level, format string, a ...any) {
	_ = h.logger.Log(level, h.msgKey, fmt.Sprintf(format, a...))
}

func (h *Helper) Debug(a ...any)                 { h.log(LevelDebug, a...) }
func (h *Helper) Debugf(format string, a ...any) { h.logf(LevelDebug, format, a...) }
func (h *Helper) Info(a ...any)                  { h.log(LevelInfo, a...) }
func (h *Helper) Infof(format string, a ...any)  { h.logf(LevelInfo, format, a...) }
func (h *Helper) Warn(a ...any)                  { h.log(LevelWarn, a...) }
func (h *Helper) Warnf(format string, a ...any)  { h.logf(LevelWarn, format, a...) }
func (h *Helper) Error(a ...any)                 { h.log(LevelError, a...) }
func (h *Helper) Errorf(format string, a ...any) { h.logf(LevelError, format, a...) }

// Errorw logs a structured error entry with arbitrary alternating keyvals,
// for call sites that already have a key/value pair rather than a message.
func (h *Helper) Errorw(keyvals ...any) {
	_ = h.logger.Log(LevelError, keyvals...)
}

func (h *Helper) Fatal(a ...any) {
	h.log(LevelFatal, a...)
	os.Exit(1)
}

func (h *Helper) Fatalf(format string, a ...any) {
	h.logf(LevelFatal, format, a...)
	os.Exit(1)
}

type helperKey struct{}

// NewContext attaches h to ctx, retrievable later with Context.
func NewContext(ctx context.Context, h *Helper) context.Context {
	return context.WithValue(ctx, helperKey{}, h)
}

// Context returns the Helper attached to ctx, falling back to a Helper
// around the package-level default logger.
func Context(ctx context.Context) *Helper {
	if h, ok := ctx.Value(helperKey{}).(*Helper); ok {
		return h
	}
	return NewHelper(GetLogger())
}

// package-level convenience funcs bound to the default logger.

func Debugf(format string, a ...any) { NewHelper(GetLogger()).Debugf(format, a...) }
func Debug(a ...any)                 { NewHelper(GetLogger()).Debug(a...) }
func Infof(format string, a ...any)  { NewHelper(GetLogger()).Infof(format, a...) }
func Info(a ...any)                  { NewHelper(GetLogger()).Info(a...) }
func Warnf(format string, a ...any)  { NewHelper(GetLogger()).Warnf(format, a...) }
func Warn(a ...any)                  { NewHelper(GetLogger()).Warn(a...) }
func Errorf(format string, a ...any) { NewHelper(GetLogger()).Errorf(format, a...) }
func Error(a ...any)                 { NewHelper(GetLogger()).Error(a...) }
func Fatal(a ...any)                 { NewHelper(GetLogger()).Fatal(a...) }
func Fatalf(format string, a ...any) { NewHelper(GetLogger()).Fatalf(format, a...) }
