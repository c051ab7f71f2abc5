package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap. Its methods take a context and prepend the correlation
// fields found there (trace, workspace, document, request).
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger writing to stdout and, when cfg.OTEL is set and
// provider is non-nil, to the OTel log pipeline.
func NewLogger(cfg *Config, provider log.LoggerProvider) (*Logger, error) {
	return newLogger(cfg, zapcore.Lock(os.Stdout), provider)
}

func newLogger(cfg *Config, out zapcore.WriteSyncer, provider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	core, err := newCore(cfg, out, provider)
	if err != nil {
		return nil, err
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		// Skip the context-aware wrapper methods.
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	z := zap.New(core, opts...)

	if len(cfg.Fields) > 0 {
		keys := make([]string, 0, len(cfg.Fields))
		for k := range cfg.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]zap.Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, zap.String(k, cfg.Fields[k]))
		}
		z = z.With(fields...)
	}
	return &Logger{zap: z}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a terminal
// or pipe are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

// Underlying returns the zap logger for stores and clients that take a
// *zap.Logger. Context fields are not added on that path.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}
