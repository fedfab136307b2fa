// Package nodetest drives the node binary from Go tests.
//
// Every failure (spawn error, readiness or exit timeout, database cleanup
// error) fails the calling test immediately through tb.Fatalf, and every
// started node is killed by a tb.Cleanup hook, so the process is terminated
// whether the test returns, fails or panics.
//
//	func TestNodeStarts(t *testing.T) {
//		h := nodetest.New(t)
//		node := h.Start(command.New().Pair("--ip", "1.2.3.4"))
//		node.WaitForLog("listening", 5*time.Second)
//	}
package nodetest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-node-harness/internal/config"
	"github.com/randomizedcoder/go-node-harness/internal/metrics"
	"github.com/randomizedcoder/go-node-harness/internal/supervisor"
	"github.com/randomizedcoder/go-node-harness/pkg/command"
)

// outputTail is the number of console lines appended to failure messages.
const outputTail = 20

// Option configures a Harness.
type Option func(*options)

type options struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// WithConfig replaces the default configuration. Pass it before other
// options, which modify the configuration in place.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithBinary sets an explicit node binary, bypassing path resolution.
func WithBinary(path string) Option {
	return func(o *options) { o.cfg.BinaryPath = path }
}

// WithDataDir sets the directory holding the node log and database.
func WithDataDir(dir string) Option {
	return func(o *options) { o.cfg.DataDir = dir }
}

// WithInvocationPath overrides the path the binary is resolved from.
func WithInvocationPath(path string) Option {
	return func(o *options) { o.cfg.InvocationPath = path }
}

// WithStartDelay overrides the pause after spawning.
func WithStartDelay(d time.Duration) Option {
	return func(o *options) { o.cfg.StartDelay = d }
}

// WithPollIntervals overrides the log and exit polling intervals.
func WithPollIntervals(log, exit time.Duration) Option {
	return func(o *options) {
		o.cfg.LogPollInterval = log
		o.cfg.ExitPollInterval = exit
	}
}

// WithLogger routes harness logs to logger. By default they go to the
// test log.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records harness events on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.metrics = collector }
}

// Harness launches nodes for one test.
type Harness struct {
	tb  testing.TB
	sup *supervisor.Supervisor
}

// New builds a Harness. Configuration or path resolution errors fail the
// test.
func New(tb testing.TB, opts ...Option) *Harness {
	tb.Helper()

	o := &options{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(tbWriter{tb}, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if err := config.Validate(o.cfg); err != nil {
		tb.Fatalf("nodetest: invalid configuration: %v", err)
	}
	sup, err := supervisor.FromConfig(o.cfg, o.logger, o.metrics)
	if err != nil {
		tb.Fatalf("nodetest: %v", err)
	}

	return &Harness{tb: tb, sup: sup}
}

// Supervisor returns the underlying supervisor.
func (h *Harness) Supervisor() *supervisor.Supervisor { return h.sup }

// LogPath returns the node log file path.
func (h *Harness) LogPath() string { return h.sup.LogPath() }

// DatabasePath returns the node database path.
func (h *Harness) DatabasePath() string { return h.sup.DatabasePath() }

// Start launches the node with the standard arguments followed by extra.
// The node is killed when the test finishes.
func (h *Harness) Start(extra *command.Config) *Node {
	h.tb.Helper()
	return h.StartContext(context.Background(), extra)
}

// StartContext is Start with the start delay bounded by ctx.
func (h *Harness) StartContext(ctx context.Context, extra *command.Config) *Node {
	h.tb.Helper()

	n, err := h.sup.Start(ctx, extra)
	if err != nil {
		h.tb.Fatalf("nodetest: start node: %v", err)
	}

	node := &Node{tb: h.tb, node: n}
	h.tb.Cleanup(func() {
		if _, err := n.Kill(); err != nil {
			h.tb.Errorf("nodetest: kill node %s: %v", n.RunID(), err)
		}
	})
	return node
}

// DumpConfig runs the node with --dump-config and returns its output.
func (h *Harness) DumpConfig() string {
	h.tb.Helper()
	out, err := h.sup.DumpConfig(context.Background())
	if err != nil {
		h.tb.Fatalf("nodetest: dump config: %v", err)
	}
	return out
}

// GenerateWallet runs the node with --generate-wallet and returns its output.
func (h *Harness) GenerateWallet(extra *command.Config) string {
	h.tb.Helper()
	out, err := h.sup.GenerateWallet(context.Background(), extra)
	if err != nil {
		h.tb.Fatalf("nodetest: generate wallet: %v", err)
	}
	return out
}

// RecoverWallet runs the node with --recover-wallet and returns its output.
func (h *Harness) RecoverWallet(extra *command.Config) string {
	h.tb.Helper()
	out, err := h.sup.RecoverWallet(context.Background(), extra)
	if err != nil {
		h.tb.Fatalf("nodetest: recover wallet: %v", err)
	}
	return out
}

// RemoveDatabase deletes the node database; a missing file is fine.
func (h *Harness) RemoveDatabase() {
	h.tb.Helper()
	if err := h.sup.RemoveDatabase(); err != nil {
		h.tb.Fatalf("nodetest: %v", err)
	}
}

// Node is a running node owned by a test.
type Node struct {
	tb   testing.TB
	node *supervisor.Node
}

// Unwrap returns the supervisor handle for error-returning access.
func (n *Node) Unwrap() *supervisor.Node { return n.node }

// LogContents returns the log snapshot read by the last WaitForLog attempt.
func (n *Node) LogContents() string { return n.node.LogContents() }

// WaitForLog blocks until the node log matches pattern. A timeout of zero
// waits practically forever. Timing out fails the test.
func (n *Node) WaitForLog(pattern string, timeout time.Duration) {
	n.tb.Helper()
	if err := n.node.WaitForLog(context.Background(), pattern, timeout); err != nil {
		n.tb.Fatalf("nodetest: %v%s", err, n.outputTail())
	}
}

// WaitForExit blocks until the node exits and returns its exit code, nil
// when it was terminated by a signal. Timing out fails the test.
func (n *Node) WaitForExit(timeout time.Duration) *int {
	n.tb.Helper()
	code, err := n.node.WaitForExit(context.Background(), timeout)
	if err != nil {
		n.tb.Fatalf("nodetest: %v%s", err, n.outputTail())
	}
	return code
}

// Kill terminates the node forcefully and returns its exit code. Killing an
// exited node is not an error.
func (n *Node) Kill() *int {
	n.tb.Helper()
	code, err := n.node.Kill()
	if err != nil {
		n.tb.Fatalf("nodetest: %v", err)
	}
	return code
}

// Stop terminates the node gracefully, forcing it after grace.
func (n *Node) Stop(grace time.Duration) *int {
	n.tb.Helper()
	code, err := n.node.Stop(context.Background(), grace)
	if err != nil {
		n.tb.Fatalf("nodetest: %v", err)
	}
	return code
}

func (n *Node) outputTail() string {
	stdout, stderr := n.node.RecentOutput(outputTail)
	if len(stdout) == 0 && len(stderr) == 0 {
		return ""
	}
	var b strings.Builder
	if len(stdout) > 0 {
		fmt.Fprintf(&b, "\nnode stdout:\n  %s", strings.Join(stdout, "\n  "))
	}
	if len(stderr) > 0 {
		fmt.Fprintf(&b, "\nnode stderr:\n  %s", strings.Join(stderr, "\n  "))
	}
	return b.String()
}

// tbWriter sends slog output to the test log.
type tbWriter struct {
	tb testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
