package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Options configures the global logger. The zero value logs INFO and above
// to stderr.
type Options struct {
	Level Level
	// File, if set, additionally writes JSON lines to a size-rotated file.
	File string
	// Console selects human-readable stderr output instead of JSON.
	Console bool
}

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, zerolog.InfoLevel)
)

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Setup replaces the global logger. It is called once from main before any
// task starts.
func Setup(opts Options) {
	var out io.Writer = os.Stderr
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if opts.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    1,
			MaxBackups: 2,
		})
	}

	mu.Lock()
	logger = newLogger(out, toZerolog(opts.Level))
	mu.Unlock()
}

// SetOutput redirects logging to w. Tests use it to capture lines.
func SetOutput(w io.Writer, l Level) {
	mu.Lock()
	logger = newLogger(w, toZerolog(l))
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	logger = logger.Level(toZerolog(l))
	mu.Unlock()
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, "debug":
		return LevelDebug
	case LevelWarn, "warn":
		return LevelWarn
	case LevelError, "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug(msg string, kv ...any) {
	l := current()
	emit(l.Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	l := current()
	emit(l.Info(), msg, kv)
}

func Warn(msg string, kv ...any) {
	l := current()
	emit(l.Warn(), msg, kv)
}

func Error(msg string, err error, kv ...any) {
	l := current()
	emit(l.Error().Err(err), msg, kv)
}

// emit builds the field map only for enabled levels; a disabled event is nil.
func emit(e *zerolog.Event, msg string, kv []any) {
	if !e.Enabled() {
		return
	}
	e.Fields(fields(kv)).Msg(msg)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// fields converts key, value, key, value ... into a map. Non-string keys are
// skipped; a trailing key without value is ignored.
func fields(kv []any) map[string]any {
	if len(kv) < 2 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = safeValue(kv[i+1])
	}
	return out
}

func safeValue(v any) any {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
