package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging throughout the application. Messages are
// printf-style; structured fields are attached with With.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a console Logger on stdout at debug level.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, "debug")
}

// NewLoggerTo creates a console Logger writing to w at the given level.
func NewLoggerTo(w io.Writer, level string) *Logger {
	return newLogger(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}, level)
}

// NewJSONLogger creates a Logger emitting one JSON object per line.
func NewJSONLogger(w io.Writer, level string) *Logger {
	return newLogger(w, level)
}

// NewLoggerFromEnv picks the output format ("json" or "console") and level.
func NewLoggerFromEnv(format, level string) *Logger {
	if strings.EqualFold(format, "json") {
		return NewJSONLogger(os.Stdout, level)
	}
	return NewLoggerTo(os.Stdout, level)
}

func newLogger(w io.Writer, level string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zl: zl}
}

func parseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || value == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// With returns a child logger carrying key=value on every message.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}
