// Package log provides the process-wide zerolog logger.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to zerolog levels.
// Anything else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to w. JSON is used when NEEDLEDROP_ENV is
// "production", a console writer otherwise.
func New(w io.Writer, level string) zerolog.Logger {
	if os.Getenv("NEEDLEDROP_ENV") != "production" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Init sets up the global logger on stderr. Stdout is left to the status
// line. Only the first call has any effect.
func Init(level string) {
	once.Do(func() {
		logger = New(os.Stderr, level)
	})
}

// L returns the global logger, initialising it at info level if needed.
func L() zerolog.Logger {
	Init("info")
	return logger
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	l := L()
	return l.Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	l := L()
	return l.Info()
}

// Warn starts a warn-level event.
func Warn() *zerolog.Event {
	l := L()
	return l.Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	l := L()
	return l.Error()
}

// With returns a child logger tagged with component.
func With(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}
