package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of recent lines kept per stream.
	MaxBufferedLines = 100
)

// OutputHandler captures one console stream (stdout or stderr) of the
// supervised node. It is an io.Writer suitable for exec.Cmd.Stdout and
// exec.Cmd.Stderr: bytes are split into lines, each line is stored in a ring
// buffer and logged at a level derived from its content.
type OutputHandler struct {
	stream  string
	runID   string
	logger  *slog.Logger
	verbose bool

	mu      sync.Mutex
	partial []byte

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	total  int
}

// NewOutputHandler creates a handler for the named stream of one launch.
func NewOutputHandler(stream, runID string, logger *slog.Logger, verbose bool) *OutputHandler {
	if logger == nil {
		logger = Discard()
	}
	return &OutputHandler{
		stream:  stream,
		runID:   runID,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// Write implements io.Writer. An incomplete trailing line is held until the
// next write or Flush.
func (h *OutputHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.partial = append(h.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(h.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(h.partial[:i]), "\r"))
		h.partial = h.partial[i+1:]
	}
	// A runaway line without newline is cut rather than buffered forever
	if len(h.partial) > MaxLineLength {
		lines = append(lines, string(h.partial))
		h.partial = nil
	}
	h.mu.Unlock()

	for _, line := range lines {
		h.HandleLine(line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line. Call it once the process exited.
func (h *OutputHandler) Flush() {
	h.mu.Lock()
	rest := h.partial
	h.partial = nil
	h.mu.Unlock()

	if len(rest) > 0 {
		h.HandleLine(strings.TrimRight(string(rest), "\r"))
	}
}

// HandleLine processes a single line of output.
func (h *OutputHandler) HandleLine(line string) {
	// Truncate if too long
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.total++
	h.mu.Unlock()

	h.logLine(line)
}

func (h *OutputHandler) logLine(line string) {
	level := classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "node_output",
		"run_id", h.runID,
		"stream", h.stream,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "panic") ||
		strings.Contains(lower, "error") ||
		strings.Contains(lower, "fatal") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warn") ||
		strings.Contains(lower, "address already in use") ||
		strings.Contains(lower, "permission denied") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.total {
		n = h.total
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}

	return lines
}

// Total returns the number of lines seen since creation.
func (h *OutputHandler) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// ErrorPatterns are node failure signatures counted for the exit summary.
var ErrorPatterns = []string{
	"panicked",
	"ERROR",
	"Address already in use",
	"Permission denied",
	"database",
	"Connection refused",
	"timed out",
}

// CountErrors counts occurrences of error patterns in the buffered lines.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)

	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
