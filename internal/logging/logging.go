package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures the process logger.
type Options struct {
	Level slog.Level
	// Console receives human-readable logs; stderr when nil so stdout stays
	// free for status lines.
	Console io.Writer
	NoColor bool
	// Prefix tags every console line, e.g. the run ID.
	Prefix string
	// FilePath, when set, also appends JSON logs to that file.
	FilePath string
}

// New builds a logger fanning out to the console and, optionally, a JSON log
// file. The returned close func releases the file.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:        opts.Level,
			TimeFormat:   "15:04:05.000",
			NoColor:      opts.NoColor,
			CustomPrefix: opts.Prefix,
		}),
	}
	closer := func() error { return nil }
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level}))
		closer = f.Close
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
