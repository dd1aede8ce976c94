// Package logger builds the structured loggers used across the service.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
)

// Options configures a logger.
type Options struct {
	// Level is the minimum level (debug, info, warn, error)
	Level string
	// Format is text or json
	Format string
	// Output defaults to os.Stderr
	Output io.Writer
	// Prefix names the component
	Prefix string
	// ReportCaller adds file:line to entries
	ReportCaller bool
}

// ParseLevel converts a level name to log.Level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// New creates a logger with the given options.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		TimeFormat:      time.RFC3339,
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
	})
	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

// FromConfig creates the root logger for a process.
func FromConfig(cfg config.LogConfig, prefix string) *log.Logger {
	return New(Options{
		Level:  cfg.Level,
		Format: cfg.Format,
		Prefix: prefix,
	})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
