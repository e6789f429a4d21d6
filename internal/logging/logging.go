// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger used across netmond.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Level mirrors slog.Level with names matching the rest of the codebase.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SyslogConfig configures the optional syslog sink. Disabled by default.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns the observed defaults: disabled, UDP/514.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "netmond",
		Facility: 1,
	}
}

// Config configures a Logger.
type Config struct {
	Level  Level
	JSON   bool
	Output *os.File
	Syslog SyslogConfig
}

// DefaultConfig returns sensible defaults: info level, text output on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		JSON:   false,
		Output: os.Stderr,
		Syslog: DefaultSyslogConfig(),
	}
}

// Logger wraps a slog.Logger, tracking its component name for WithComponent
// chaining and its configured level for Enabled checks.
type Logger struct {
	slog      *slog.Logger
	component string
	level     Level
}

// New builds a Logger from cfg. A nil Output defaults to os.Stderr.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return &Logger{slog: slog.New(handler), level: cfg.Level}
}

// WithComponent returns a child logger tagging every line with component=name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		slog:      l.slog.With("component", name),
		component: name,
		level:     l.level,
	}
}

// With returns a child logger with additional key/value pairs attached.
func (l *Logger) With(kvs ...any) *Logger {
	return &Logger{slog: l.slog.With(kvs...), component: l.component, level: l.level}
}

func (l *Logger) Debug(msg string, kvs ...any) { l.slog.Debug(msg, kvs...) }
func (l *Logger) Info(msg string, kvs ...any)  { l.slog.Info(msg, kvs...) }
func (l *Logger) Warn(msg string, kvs ...any)  { l.slog.Warn(msg, kvs...) }
func (l *Logger) Error(msg string, kvs ...any) { l.slog.Error(msg, kvs...) }

// Enabled reports whether a log line at the given level would be emitted.
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.slogLevel())
}

var (
	defaultMu     sync.Mutex
	defaultLogger atomic.Pointer[Logger]
)

func init() {
	defaultLogger.Store(New(DefaultConfig()))
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger.Store(l)
}

// Default returns the process-wide default logger.
func Default() *Logger {
	return defaultLogger.Load()
}

func Debug(msg string, kvs ...any) { Default().Debug(msg, kvs...) }
func Info(msg string, kvs ...any)  { Default().Info(msg, kvs...) }
func Warn(msg string, kvs ...any)  { Default().Warn(msg, kvs...) }
func Error(msg string, kvs ...any) { Default().Error(msg, kvs...) }
