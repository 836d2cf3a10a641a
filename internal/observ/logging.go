package observ

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stdout, zerolog.InfoLevel)
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Log writes one JSON line for event at info level.
func Log(event string, kv map[string]any) {
	logAt(zerolog.InfoLevel, event, kv)
}

// Warn writes event at warn level. Used for recovered failures (fallbacks, skipped runs).
func Warn(event string, kv map[string]any) {
	logAt(zerolog.WarnLevel, event, kv)
}

// Debug writes event at debug level.
func Debug(event string, kv map[string]any) {
	logAt(zerolog.DebugLevel, event, kv)
}

func logAt(lvl zerolog.Level, event string, kv map[string]any) {
	logMu.RLock()
	l := logger
	logMu.RUnlock()

	e := l.WithLevel(lvl)
	if e == nil {
		return
	}
	if len(kv) > 0 {
		e = e.Fields(kv)
	}
	e.Str("event", event).Send()
}

// SetLevel parses level and applies it; unknown levels fall back to info.
func SetLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logMu.Lock()
	logger = logger.Level(lvl)
	logMu.Unlock()
	return lvl
}

// SetOutput redirects log lines, keeping the current level.
func SetOutput(w io.Writer) {
	logMu.Lock()
	logger = newLogger(w, logger.GetLevel())
	logMu.Unlock()
}

// Logger returns the underlying zerolog logger for components that want one.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}
