// Package orchestrator coordinates the supervisor, preflight checks, metrics
// and the dashboard for one command-line session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-node-harness/internal/config"
	"github.com/randomizedcoder/go-node-harness/internal/metrics"
	"github.com/randomizedcoder/go-node-harness/internal/preflight"
	"github.com/randomizedcoder/go-node-harness/internal/supervisor"
	"github.com/randomizedcoder/go-node-harness/internal/tui"
	"github.com/randomizedcoder/go-node-harness/pkg/command"
)

// shutdownSlack is added to two kill graces (graceful request, then forced)
// when bounding shutdown.
const shutdownSlack = 5 * time.Second

// Options holds optional settings for an Orchestrator.
type Options struct {
	// Version is reported on the info metric.
	Version string

	// Out receives preflight results, node output and the exit summary.
	// Defaults to os.Stdout.
	Out io.Writer
}

// Orchestrator runs the node for one session.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	out    io.Writer

	supervisor    *supervisor.Supervisor
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server

	startTime time.Time
}

// New resolves the node binary and creates an Orchestrator with its own
// metrics registry.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(registry)

	sup, err := supervisor.FromConfig(cfg, logger, collector)
	if err != nil {
		return nil, err
	}
	collector.SetInfo(opts.Version, sup.Strategy().Name())

	orch := &Orchestrator{
		config:     cfg,
		logger:     logger,
		out:        out,
		supervisor: sup,
		registry:   registry,
		metrics:    collector,
	}
	if cfg.MetricsAddr != "" {
		orch.metricsServer = metrics.NewServer(cfg.MetricsAddr, registry, logger)
	}

	return orch, nil
}

// Preflight runs the startup checks and prints their results.
func (o *Orchestrator) Preflight() error {
	result := preflight.RunAll(preflight.Target{
		Binary:       o.supervisor.Binary(),
		DataDir:      o.config.DataDir,
		LogPath:      o.supervisor.LogPath(),
		DatabasePath: o.supervisor.DatabasePath(),
	})
	preflight.PrintResults(o.out, result)
	if !result.Passed {
		return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
	}
	return nil
}

// Run starts the node with extra appended to the standard arguments, waits
// for readiness and supervises it until the node exits, ctx is cancelled or
// a termination signal arrives. The node is always stopped before Run
// returns. A node that exits on its own with a non-zero status is an error.
func (o *Orchestrator) Run(ctx context.Context, extra *command.Config) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		if err := o.Preflight(); err != nil {
			return err
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	node, err := o.supervisor.Start(ctx, extra)
	if err != nil {
		o.shutdown(nil)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer o.shutdown(node)

	o.logger.Info("node_started",
		"run_id", node.RunID(),
		"pid", node.PID(),
		"binary", o.supervisor.Binary(),
	)

	var runErr error
	if o.config.TUIEnabled {
		go func() {
			if err := o.awaitReadiness(ctx, node); err != nil && ctx.Err() == nil {
				o.logger.Warn("readiness_failed", "error", err)
			}
		}()
		runErr = o.runDashboard(ctx, node)
	} else {
		runErr = o.awaitReadiness(ctx, node)
		if runErr == nil {
			runErr = o.waitForExit(ctx, node)
		}
	}
	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		runErr = nil
	}
	return runErr
}

// awaitReadiness waits for the configured pattern. The wait ends early if
// the node exits.
func (o *Orchestrator) awaitReadiness(ctx context.Context, node *supervisor.Node) error {
	if o.config.ReadyPattern == "" {
		return nil
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-node.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	err := node.WaitForLog(waitCtx, o.config.ReadyPattern, o.config.ReadyTimeout)
	if err == nil {
		if o.metricsServer != nil {
			o.metricsServer.SetReady(true)
		}
		o.logger.Info("node_ready",
			"run_id", node.RunID(),
			"after", node.Status().ReadyAfter.String(),
		)
		return nil
	}

	if ctx.Err() == nil && node.Exited() {
		return fmt.Errorf("%w: node exited before becoming ready (exit code %s)",
			supervisor.ErrStartup, formatCode(node.ExitCode()))
	}
	return err
}

// waitForExit blocks until the node exits or ctx is done.
func (o *Orchestrator) waitForExit(ctx context.Context, node *supervisor.Node) error {
	select {
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
		return nil
	case <-node.Done():
	}

	code := node.ExitCode()
	o.logger.Info("node_exited", "run_id", node.RunID(), "exit_code", formatCode(code))
	if code != nil && *code == 0 {
		return nil
	}
	return fmt.Errorf("node exited with code %s", formatCode(code))
}

// runDashboard shows the live dashboard until the user quits or ctx is done.
func (o *Orchestrator) runDashboard(ctx context.Context, node *supervisor.Node) error {
	model := tui.New(tui.Config{
		ReadyPattern:  o.config.ReadyPattern,
		ReadyTimeout:  o.config.ReadyTimeout,
		MetricsAddr:   o.MetricsAddr(),
		NodeSource:    node,
		SummarySource: o.metrics,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// shutdown stops the node and the metrics server, then prints the summary.
func (o *Orchestrator) shutdown(node *supervisor.Node) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*o.config.KillGrace+shutdownSlack)
	defer shutdownCancel()

	if node != nil {
		if _, err := node.Stop(shutdownCtx, o.config.KillGrace); err != nil {
			o.logger.Warn("shutdown_incomplete", "run_id", node.RunID(), "error", err)
		}
	}

	if o.metricsServer != nil {
		o.metricsServer.SetReady(false)
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	o.printExitSummary()
	o.printMetrics()
}

// RunMode runs the node in one of its run-to-completion modes and prints
// its console output.
func (o *Orchestrator) RunMode(ctx context.Context, mode string, extra *command.Config) error {
	var (
		out string
		err error
	)
	switch mode {
	case metrics.ModeDumpConfig:
		out, err = o.supervisor.DumpConfig(ctx)
	case metrics.ModeGenerateWallet:
		out, err = o.supervisor.GenerateWallet(ctx, extra)
	case metrics.ModeRecoverWallet:
		out, err = o.supervisor.RecoverWallet(ctx, extra)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(o.out, out)
	o.printMetrics()
	return nil
}

// printMetrics dumps the harness metrics when --print-metrics is set.
func (o *Orchestrator) printMetrics() {
	if !o.config.PrintMetrics {
		return
	}
	fmt.Fprintln(o.out)
	if err := metrics.WriteText(o.out, o.registry, metrics.Namespace); err != nil {
		o.logger.Warn("print_metrics_failed", "error", err)
	}
}

// printExitSummary prints a summary of the session.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()
	w := o.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                     nodeharness Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Run Duration:           %s\n", formatDuration(time.Since(o.startTime)))
	fmt.Fprintf(w, "Node Binary:            %s\n", o.supervisor.Binary())
	fmt.Fprintf(w, "Launches:               %d\n", summary.TotalLaunches)
	fmt.Fprintln(w)

	if summary.ReadinessCount > 0 {
		fmt.Fprintln(w, "Readiness:")
		fmt.Fprintf(w, "  P50 (median):         %s\n", summary.ReadinessP50)
		fmt.Fprintf(w, "  P95:                  %s\n", summary.ReadinessP95)
		fmt.Fprintf(w, "  P99:                  %s\n", summary.ReadinessP99)
		fmt.Fprintln(w)
	}

	if len(summary.ExitCodes) > 0 || summary.Signaled > 0 {
		fmt.Fprintln(w, "Exit Codes:")
		codes := make([]int, 0, len(summary.ExitCodes))
		for code := range summary.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %3d %-16s %d\n", code, exitCodeLabel(code), summary.ExitCodes[code])
		}
		if summary.Signaled > 0 {
			fmt.Fprintf(w, "    - %-16s %d\n", "(signaled)", summary.Signaled)
		}
		fmt.Fprintln(w)
	}

	if o.metricsServer != nil {
		fmt.Fprintf(w, "Metrics endpoint was: http://%s/metrics\n", o.metricsServer.Addr())
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 101:
		return "(panic)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

func formatCode(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprint(*code)
}

// Supervisor returns the supervisor for external access.
func (o *Orchestrator) Supervisor() *supervisor.Supervisor {
	return o.supervisor
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Registry returns the registry the collector is registered on.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// MetricsAddr returns the metrics server address, or "" when disabled.
// After Run has started the server it is the bound address.
func (o *Orchestrator) MetricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}
