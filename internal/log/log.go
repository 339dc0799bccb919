// Package log provides the structured logger used by the planner binaries.
// Records are JSON, written to a size-rotated file and optionally teed to
// stderr. A nil *Logger is valid: debug and info records are dropped and
// warnings and errors go to the default slog logger.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how much the logger writes.
type Config struct {
	// Dir holds the rotated log file. Empty disables the file.
	Dir string
	// Level is one of debug, info, warn or error.
	Level string
	// Stderr also writes every record to standard error.
	Stderr bool
}

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time

	closer io.Closer
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// info and return an error.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
}

// New opens a logger according to cfg.
func New(cfg Config) *Logger {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v, using info\n", err)
	}

	var writers []io.Writer
	l := &Logger{Start: time.Now()}

	if cfg.Dir != "" {
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "planner.slog"),
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		if lvl == slog.LevelDebug {
			lj.MaxSize = 256
		}
		writers = append(writers, lj)
		l.LogFile = lj.Filename
		l.closer = lj
	}
	if cfg.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	l.Logger = slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: lvl}))

	l.Info("Hello logging",
		slog.Time("start", l.Start),
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH))

	return l
}

// NewWriter returns a logger writing JSON records to w.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, _ := ParseLevel(level)
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		Start:  time.Now(),
	}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil {
		l.Logger.Debug(msg, args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	l.Warn(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	l.Error(fmt.Sprintf(msg, args...))
}

// With returns a logger that adds args to every record. With on a nil
// logger returns nil.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		Start:   l.Start,
	}
}
