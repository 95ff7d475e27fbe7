package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Trace writes JSON log records to a file for offline debugging.
type Trace struct {
	file     *os.File
	filename string
}

// NewTrace creates a trace file in the temp directory.
func NewTrace() (*Trace, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("odata_restrictions_trace_%s.log", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	return &Trace{file: file, filename: filename}, nil
}

// Filename returns the trace filename
func (t *Trace) Filename() string {
	return t.filename
}

// Close closes the trace file
func (t *Trace) Close() error {
	return t.file.Close()
}

// NewLogger builds the application logger. Records go to w as text; with a
// trace they are also written, at debug level, as JSON to the trace file.
// Sensitive attributes are masked in both outputs.
func NewLogger(w io.Writer, verbose bool, trace *Trace) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: MaskAttr})
	if trace == nil {
		return slog.New(text)
	}
	json := slog.NewJSONHandler(trace.file, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: MaskAttr})
	logger := slog.New(fanout{text, json})
	logger.Debug("trace logging started", "filename", trace.filename, "pid", os.Getpid())
	return logger
}

// fanout sends every record to all handlers that accept its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
