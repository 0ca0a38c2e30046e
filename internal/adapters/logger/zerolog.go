// Package logger provides ports.Logger implementations.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// Compile-time interface check.
var _ ports.Logger = (*ZeroLogger)(nil)

// ZeroLogger implements the ports.Logger interface on top of rs/zerolog.
type ZeroLogger struct {
	l zerolog.Logger
}

// Config holds configuration for the zerolog adapter.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall back
	// to info.
	Level string
	// Pretty switches from JSON lines to a human-readable console writer.
	Pretty bool
	// Out defaults to os.Stderr.
	Out io.Writer
}

// New creates a zerolog-backed logger.
func New(cfg Config) *ZeroLogger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{l: l}
}

func withFields(e *zerolog.Event, fields []map[string]interface{}) *zerolog.Event {
	if len(fields) > 0 && fields[0] != nil {
		e = e.Fields(fields[0])
	}
	return e
}

// Debug logs a message at Debug level.
func (z *ZeroLogger) Debug(_ context.Context, msg string, fields ...map[string]interface{}) {
	withFields(z.l.Debug(), fields).Msg(msg)
}

// Info logs a message at Info level.
func (z *ZeroLogger) Info(_ context.Context, msg string, fields ...map[string]interface{}) {
	withFields(z.l.Info(), fields).Msg(msg)
}

// Warn logs a message at Warning level.
func (z *ZeroLogger) Warn(_ context.Context, msg string, fields ...map[string]interface{}) {
	withFields(z.l.Warn(), fields).Msg(msg)
}

// Error logs an error message at Error level.
func (z *ZeroLogger) Error(_ context.Context, err error, msg string, fields ...map[string]interface{}) {
	withFields(z.l.Error().Err(err), fields).Msg(msg)
}
