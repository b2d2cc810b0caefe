// Package logging builds the console's logr.Logger on top of zap.
//
// The interactive view owns the terminal, so diagnostics are written to a
// file (or discarded) while the TUI runs; one-shot subcommands log to stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select level, encoding and destination.
type Options struct {
	Level  string // error, warn, info, debug
	Format string // console or json
	File   string // path; "" means Fallback
	// Fallback receives output when File is empty. nil discards.
	Fallback io.Writer
}

// New returns a logger and a flush function that must be called before exit.
func New(opts Options) (logr.Logger, func(), error) {
	var sink zapcore.WriteSyncer
	closeFn := func() {}

	switch {
	case strings.TrimSpace(opts.File) != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return logr.Discard(), closeFn, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return logr.Discard(), closeFn, fmt.Errorf("opening log file: %w", err)
		}
		sink = zapcore.Lock(f)
		closeFn = func() { _ = f.Close() }
	case opts.Fallback != nil:
		sink = zapcore.AddSync(opts.Fallback)
	default:
		return logr.Discard(), closeFn, nil
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(ParseLevel(opts.Level)))
	zl := zap.New(core)
	flush := func() {
		_ = zl.Sync()
		closeFn()
	}
	return zapr.NewLogger(zl), flush, nil
}

// ParseLevel maps a level name to a zap level; logr V(1) is zap debug.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// FromContext returns the logger stored in ctx, or a discard logger.
func FromContext(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return logr.Discard()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l logr.Logger) context.Context {
	return logr.NewContext(ctx, l)
}
