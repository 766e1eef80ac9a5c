// Package logging provides the structured logger shared by every ingestion
// component: console output plus optional level-split rotating log files.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is the package-level structured logger. Defaults to a discard
// handler until Init is called, so packages may log before the CLI parses
// --log-dir without panicking.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init configures the package logger.
// Console output is always enabled: INFO→stdout, WARN/ERROR→stderr.
// If logDir is non-empty, level-split rotating files are added:
//   - ingest_warn.log  — WARN + ERROR
//   - ingest_info.log  — INFO only
//   - ingest_debug.log — DEBUG only (added only when debug is true)
func Init(logDir string, debug bool) {
	minConsole := slog.LevelInfo
	if debug {
		minConsole = slog.LevelDebug
	}
	console := &consoleHandler{
		min:    minConsole,
		stdout: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: minConsole}),
		stderr: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}

	handlers := []slog.Handler{console}

	if logDir != "" {
		_ = os.MkdirAll(logDir, 0o750)

		warnFile := slog.NewTextHandler(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "ingest_warn.log"),
			MaxSize:    100,
			MaxBackups: 5,
		}, &slog.HandlerOptions{Level: slog.LevelWarn})

		infoFile := &levelRangeHandler{
			min: slog.LevelInfo,
			max: slog.LevelInfo,
			inner: slog.NewTextHandler(&lumberjack.Logger{
				Filename:   filepath.Join(logDir, "ingest_info.log"),
				MaxSize:    50,
				MaxBackups: 2,
			}, &slog.HandlerOptions{Level: slog.LevelInfo}),
		}

		handlers = append(handlers, warnFile, infoFile)

		if debug {
			debugFile := &levelRangeHandler{
				min: slog.LevelDebug,
				max: slog.LevelDebug,
				inner: slog.NewTextHandler(&lumberjack.Logger{
					Filename:   filepath.Join(logDir, "ingest_debug.log"),
					MaxSize:    50,
					MaxBackups: 1,
				}, &slog.HandlerOptions{Level: slog.LevelDebug}),
			}
			handlers = append(handlers, debugFile)
		}
	}

	logger = slog.New(&multiHandler{handlers: handlers})
}

// Sub returns a child logger tagged with the given component name.
func Sub(component string) *slog.Logger {
	return logger.With("comp", component)
}

// Enabled reports whether the given log level is currently enabled.
// Use this to guard expensive Debug logging in hot paths (per-line parsing).
func Enabled(level slog.Level) bool {
	return logger.Enabled(context.Background(), level)
}

type consoleHandler struct {
	min            slog.Level
	stdout, stderr slog.Handler
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderr.Handle(ctx, r)
	}
	return h.stdout.Handle(ctx, r)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{min: h.min, stdout: h.stdout.WithAttrs(attrs), stderr: h.stderr.WithAttrs(attrs)}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{min: h.min, stdout: h.stdout.WithGroup(name), stderr: h.stderr.WithGroup(name)}
}

// levelRangeHandler passes through only records within [min, max].
type levelRangeHandler struct {
	min, max slog.Level
	inner    slog.Handler
}

func (h *levelRangeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min && level <= h.max
}

func (h *levelRangeHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelRangeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRangeHandler{min: h.min, max: h.max, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelRangeHandler) WithGroup(name string) slog.Handler {
	return &levelRangeHandler{min: h.min, max: h.max, inner: h.inner.WithGroup(name)}
}

// multiHandler fans a record out to every configured handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
