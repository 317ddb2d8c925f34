package logging

import (
	"log/slog"
	"strings"
)

// Writer is an io.Writer implementation that forwards external tool output to slog.
type Writer struct {
	logger *slog.Logger
	tool   string
}

// NewWriter constructs a Writer bound to the provided logger. The tool name is
// attached to every forwarded line so kind/helm/kubectl output stays attributable.
func NewWriter(logger *slog.Logger, tool string) *Writer {
	return &Writer{logger: logger, tool: tool}
}

// Write logs the given bytes as a single line at info level.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger != nil {
		line := strings.TrimRight(string(p), "\n")
		if line != "" {
			w.logger.Info("tool output", "tool", w.tool, "line", line)
		}
	}
	return len(p), nil
}
