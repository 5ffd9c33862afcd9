package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Format selects the line encoding of the process logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	mu       sync.RWMutex
	base     *slog.Logger
	levelVar = new(slog.LevelVar)
	format   = FormatText
	out      io.Writer = os.Stderr
)

func init() {
	rebuild()
}

// rebuild must be called with mu held for writing (or from init).
func rebuild() {
	opts := &slog.HandlerOptions{Level: levelVar}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	base = slog.New(h)
}

// ParseLevel maps a config string onto a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelWarn:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatText
	}
	format = f
	rebuild()
}

// SetOutput redirects all subsequent log lines. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	rebuild()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debug(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Log(context.Background(), slog.LevelError, msg, extended...)
}

// Logger carries a fixed set of key-value pairs, e.g. one booking attempt's id.
type Logger struct {
	kv []any
}

// With returns a Logger that prefixes every line with kv.
func With(kv ...any) Logger {
	return Logger{kv: append([]any(nil), kv...)}
}

// With returns a copy of l extended with kv.
func (l Logger) With(kv ...any) Logger {
	merged := make([]any, 0, len(l.kv)+len(kv))
	merged = append(merged, l.kv...)
	merged = append(merged, kv...)
	return Logger{kv: merged}
}

func (l Logger) Debug(msg string, kv ...any) { Debug(msg, l.merge(kv)...) }

func (l Logger) Info(msg string, kv ...any) { Info(msg, l.merge(kv)...) }

func (l Logger) Warn(msg string, kv ...any) { Warn(msg, l.merge(kv)...) }

func (l Logger) Error(msg string, err error, kv ...any) { Error(msg, err, l.merge(kv)...) }

func (l Logger) merge(kv []any) []any {
	if len(l.kv) == 0 {
		return kv
	}
	merged := make([]any, 0, len(l.kv)+len(kv))
	merged = append(merged, l.kv...)
	return append(merged, kv...)
}
