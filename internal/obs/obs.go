// Package obs is the explicit observability context threaded through the
// orchestrator and adapters: no global singleton, a no-op default, and an
// optional slog-backed JSON implementation.
package obs

import (
	"io"
	"log/slog"
)

// Observer records orchestration events and metrics. Implementations must be
// safe for use from a single conversation thread; the core never calls an
// Observer concurrently for one plan.
type Observer interface {
	Event(name string, attrs map[string]any)
	Metric(name string, value float64)
}

// Nop discards everything. The zero value is ready to use.
type Nop struct{}

func (Nop) Event(string, map[string]any) {}
func (Nop) Metric(string, float64)       {}

// Log writes events and metrics as JSON log lines.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a slog-backed observer writing JSON to w.
func NewLog(w io.Writer) *Log {
	return &Log{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// NewLogWith wraps an existing slog logger.
func NewLogWith(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Event(name string, attrs map[string]any) {
	args := make([]any, 0, len(attrs)*2)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	l.logger.Info(name, args...)
}

func (l *Log) Metric(name string, value float64) {
	l.logger.Info("metric", "name", name, "value", value)
}
