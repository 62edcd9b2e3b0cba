// Package log wraps zerolog the way cuemby-warren's pkg/log does: a single
// process-wide logger constructed once at startup and handed out through
// small With* helpers instead of a global singleton reached from everywhere.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the configured minimum severity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how New builds the root logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// New builds a root zerolog.Logger from cfg. Callers (cmd/aggregator,
// tests) own the returned value and pass it to components explicitly.
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var logger zerolog.Logger
	if cfg.JSONOutput {
		logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// WithComponent returns a child logger tagging every line with component.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// WithSubject tags every line with the pub/sub subject being handled.
func WithSubject(l zerolog.Logger, subject string) zerolog.Logger {
	return l.With().Str("subject", subject).Logger()
}

// WithNodeID tags every line with an (already-validated) reporter node id.
func WithNodeID(l zerolog.Logger, nodeID string) zerolog.Logger {
	return l.With().Str("node_id", nodeID).Logger()
}

// WithRunID tags every line with the process's instance id so log
// aggregation can separate concurrent runs.
func WithRunID(l zerolog.Logger, runID string) zerolog.Logger {
	return l.With().Str("run_id", runID).Logger()
}
