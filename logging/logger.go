// Package logging provides a tiny abstraction over slog and zap so downstream
// code can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a richer PanelLogger with contextual
// helpers (component, conversation, discussion) and domain specific logging
// helpers for agent turns, synthesis calls and whole discussions.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from the concrete logger backend.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" (any case) into a
// LogLevel. Unknown values yield an error and LogLevelInfo.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across agentpanel.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// LoggerConfig configures construction of a PanelLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// PanelLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type PanelLogger struct {
	logger         *slog.Logger
	level          LogLevel
	component      string
	conversationID string
	discussionID   string
	attrs          []slog.Attr
}

// NewLogger builds a PanelLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *PanelLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &PanelLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component}
}

// NewSlogLogger creates a new PanelLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *PanelLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *PanelLogger) clone() *PanelLogger {
	nl := *l
	nl.attrs = append([]slog.Attr(nil), l.attrs...)
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *PanelLogger) WithContext(key string, value any) *PanelLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, slog.Any(key, value))
	return nl
}

// WithComponent sets the logical component (engine, moderator, server, ...).
func (l *PanelLogger) WithComponent(c string) *PanelLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithDiscussion attaches conversation and discussion identifiers.
func (l *PanelLogger) WithDiscussion(conversationID, discussionID string) *PanelLogger {
	nl := l.clone()
	nl.conversationID = conversationID
	nl.discussionID = discussionID
	return nl
}

func (l *PanelLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.conversationID != "" {
		attrs = append(attrs, slog.String("conversation_id", l.conversationID))
	}
	if l.discussionID != "" {
		attrs = append(attrs, slog.String("discussion_id", l.discussionID))
	}
	return append(attrs, l.attrs...)
}

func (l *PanelLogger) log(level slog.Level, msg string, args ...any) {
	if level < slogLevel(l.level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.buildAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Debug logs at debug level.
func (l *PanelLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *PanelLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *PanelLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *PanelLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogTurn records the outcome of one agent turn.
func (l *PanelLogger) LogTurn(agent string, round int, dur time.Duration, success bool, err error) {
	args := []any{"agent", agent, "round", round, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if !success {
		l.Warn("Agent turn skipped", args...)
		return
	}
	l.Info("Agent turn completed", args...)
}

// LogSynthesis records the single synthesis call of a discussion.
func (l *PanelLogger) LogSynthesis(backend, model string, dur time.Duration, success bool, err error) {
	args := []any{"backend", backend, "model", model, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if !success {
		l.Error("Synthesis failed", args...)
		return
	}
	l.Info("Synthesis completed", args...)
}

// LogDiscussion records aggregate discussion metrics.
func (l *PanelLogger) LogDiscussion(status string, messages, skipped int, dur time.Duration) {
	l.Info("Discussion finished", "status", status, "message_count", messages, "skipped_count", skipped, "duration", dur)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *PanelLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("Operation completed", "operation", op, "duration", time.Since(start)) }
}
