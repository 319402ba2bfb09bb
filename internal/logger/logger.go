// Package logger provides structured logging for grebedb.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with grebedb-specific functionality.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates a new structured logger.
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "grebedb").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything. Used as the default when a
// caller does not supply one.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Info logs an info message.
func (l *Logger) Info(msg string) *zerolog.Event { return l.zlog.Info().Str("msg", msg) }

// Debug logs a debug message.
func (l *Logger) Debug(msg string) *zerolog.Event { return l.zlog.Debug().Str("msg", msg) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) *zerolog.Event { return l.zlog.Warn().Str("msg", msg) }

// Error logs an error message.
func (l *Logger) Error(msg string) *zerolog.Event { return l.zlog.Error().Str("msg", msg) }

// WithFields returns a logger with additional fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// StoreLogger returns a logger scoped to page store operations.
func (l *Logger) StoreLogger(op string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", "pagestore").Str("op", op).Logger()}
}

// TreeLogger returns a logger scoped to B+tree operations.
func (l *Logger) TreeLogger(op string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", "btree").Str("op", op).Logger()}
}

// LogCommit logs a completed commit with its new revision and duration.
func (l *Logger) LogCommit(revision uint64, pagesWritten int, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("component", "pagestore").
		Uint64("revision", revision).
		Int("pages_written", pagesWritten).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "pagestore").
			Uint64("revision", revision).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("commit completed")
}

// LogEviction logs a dirty-page eviction write-back.
func (l *Logger) LogEviction(id uint64, revision uint64) {
	l.zlog.Debug().
		Str("component", "cache").
		Uint64("page_id", id).
		Uint64("revision", revision).
		Msg("evicted dirty page written back")
}

// Default returns the package-level fallback logger used whenever a caller
// passes nil instead of a configured *Logger.
func Default() *Logger {
	return defaultLogger
}

var defaultLogger = Nop()
