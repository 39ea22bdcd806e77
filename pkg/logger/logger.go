// Package logger is a field-oriented facade over log/slog.
// Components log with typed Field helpers; the process decides the slog
// handler (JSON in production, text in development) once in main.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel parses "debug", "info", "warn"/"warning" and "error". Anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field is a structured key/value attached to a log line.
type Field = slog.Attr

func String(key, value string) Field          { return slog.String(key, value) }
func Int(key string, value int) Field         { return slog.Int(key, value) }
func Int64(key string, value int64) Field     { return slog.Int64(key, value) }
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field       { return slog.Bool(key, value) }
func Time(key string, value time.Time) Field  { return slog.Time(key, value) }
func Any(key string, value any) Field         { return slog.Any(key, value) }

// Duration logs d in its String form so text and JSON output agree.
func Duration(key string, d time.Duration) Field {
	return slog.String(key, d.String())
}

// Err attaches an error under "error". A nil error yields an empty field.
func Err(err error) Field {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Domain-specific helpers.
func ItemID(id string) Field        { return String("item_id", id) }
func RentalID(id string) Field      { return String("rental_id", id) }
func BorrowerID(id string) Field    { return String("borrower_id", id) }
func PeriodIndex(idx int) Field     { return Int("period", idx) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// RequestIDKey is the field name for request correlation.
const RequestIDKey = "request_id"

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// Logger writes structured lines through an slog handler.
type Logger struct {
	sl *slog.Logger
}

// Options configures a logger built by New.
type Options struct {
	Level Level
	JSON  bool
}

// New creates a Logger writing to stdout.
func New(opts Options) *Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		h = slog.NewTextHandler(os.Stdout, handlerOpts)
	}
	return &Logger{sl: slog.New(h)}
}

// FromSlog wraps an existing slog logger.
func FromSlog(sl *slog.Logger) *Logger {
	if sl == nil {
		sl = slog.Default()
	}
	return &Logger{sl: sl}
}

// Default wraps slog.Default.
func Default() *Logger {
	return FromSlog(slog.Default())
}

// With returns a Logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &Logger{sl: l.sl.With(args...)}
}

// WithRequestID tags every line with the request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	l.sl.LogAttrs(context.Background(), level, msg, fields...)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
