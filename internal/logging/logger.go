// Package logging provides leveled, redacting application logging for auth-relay.
//
// Every field passed to a Logger is run through Sanitize before it reaches the
// zerolog sink, so credentials and session material never leave the process
// in clear text. Security events bypass level filtering entirely.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level is the application log threshold.
type Level int32

// Log levels, lowest to highest. LevelNone suppresses everything except
// security events.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = LevelError

// ParseLevel converts a level name to a Level.
// Unknown or empty names map to DefaultLevel.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	default:
		return DefaultLevel
	}
}

// String returns the lower-case level name.
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
	case LevelNone:
		return "none"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// Fields carries structured context for a log entry.
type Fields map[string]any

// SecurityHook observes every security event after it is written.
type SecurityHook func(event string)

// Logger writes sanitized entries to a zerolog sink.
// It is safe for concurrent use.
type Logger struct {
	now   func() time.Time
	hooks []SecurityHook
	sink  zerolog.Logger
	level atomic.Int32
}

// Option configures a Logger.
type Option func(*Logger)

// WithSecurityHook registers a hook invoked for each security event.
func WithSecurityHook(hook SecurityHook) Option {
	return func(l *Logger) {
		if hook != nil {
			l.hooks = append(l.hooks, hook)
		}
	}
}

// WithClock overrides the clock used for security event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Logger writing to sink with the given threshold.
// The sink's own level is opened up so that filtering happens here.
func New(sink zerolog.Logger, level Level, opts ...Option) *Logger {
	l := &Logger{
		sink: sink.Level(zerolog.DebugLevel),
		now:  time.Now,
	}
	l.level.Store(int32(level))

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(zerolog.Nop(), LevelNone)
}

// Level returns the current threshold.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// SetLevel changes the threshold. Used on config reload.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Zerolog returns the underlying sink for request-scoped logging.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.sink
}

// ShouldLog reports whether an entry at level passes the threshold.
func (l *Logger) ShouldLog(level Level) bool {
	return level < LevelNone && level >= l.Level()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields Fields) {
	if !l.ShouldLog(LevelDebug) {
		return
	}
	l.sink.Debug().Fields(map[string]any(Sanitize(fields))).Msg(msg)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, fields Fields) {
	if !l.ShouldLog(LevelInfo) {
		return
	}
	l.sink.Info().Fields(map[string]any(Sanitize(fields))).Msg(msg)
}

// Warn logs a warning.
func (l *Logger) Warn(msg string, fields Fields) {
	if !l.ShouldLog(LevelWarn) {
		return
	}
	l.sink.Warn().Fields(map[string]any(Sanitize(fields))).Msg(msg)
}

// Error logs an error. The error is reduced to its type name and message;
// stack traces are never written.
func (l *Logger) Error(msg string, err error, fields Fields) {
	if !l.ShouldLog(LevelError) {
		return
	}

	event := l.sink.Error()
	if err != nil {
		event = event.Dict("error", zerolog.Dict().
			Str("name", ErrorName(err)).
			Str("message", err.Error()))
	}
	event.Fields(map[string]any(Sanitize(fields))).Msg(msg)
}

// Security logs a security event regardless of the threshold.
func (l *Logger) Security(event string, details Fields) {
	l.sink.WithLevel(zerolog.ErrorLevel).
		Str("channel", "security").
		Time("timestamp", l.now().UTC()).
		Fields(map[string]any(Sanitize(details))).
		Msg(event)

	for _, hook := range l.hooks {
		hook(event)
	}
}

// ErrorName returns the Go type name of err, e.g. "*url.Error".
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
