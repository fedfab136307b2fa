package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// PairList is a repeatable flag of "--flag=value" entries, kept in the
// order given.
type PairList [][2]string

func (p *PairList) String() string {
	parts := make([]string, 0, len(*p))
	for _, kv := range *p {
		parts = append(parts, kv[0]+"="+kv[1])
	}
	return strings.Join(parts, ", ")
}

// Set parses "flag=value". The value may itself contain '='.
func (p *PairList) Set(value string) error {
	flag, val, ok := strings.Cut(value, "=")
	if !ok || flag == "" {
		return fmt.Errorf("expected flag=value, got %q", value)
	}
	*p = append(*p, [2]string{flag, val})
	return nil
}

// Type implements pflag.Value.
func (p *PairList) Type() string {
	return "flag=value"
}

// BindFlags registers every Config field on fs. Defaults come from cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// Node binary
	fs.StringVar(&cfg.BinaryPath, "binary", cfg.BinaryPath, "Path to the node binary (skips resolution from the invocation path)")
	fs.StringVar(&cfg.BinaryName, "binary-name", cfg.BinaryName, "Node executable name inside the build profile directory")
	fs.StringVar(&cfg.InvocationPath, "invocation-path", cfg.InvocationPath, "Path used to locate the build-output directory")
	fs.StringVar(&cfg.Marker, "marker", cfg.Marker, "Build-output directory name to look for in the invocation path")

	// Persisted state
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the node log and database")
	fs.StringVar(&cfg.LogFileName, "log-file", cfg.LogFileName, "Node log file name")
	fs.StringVar(&cfg.DatabaseFileName, "database-file", cfg.DatabaseFileName, "Node database file name (deleted before each launch)")

	// Default node arguments
	fs.StringVar(&cfg.DNSServers, "dns-servers", cfg.DNSServers, "Value for --dns-servers")
	fs.StringVar(&cfg.PrivateKey, "private-key", cfg.PrivateKey, "Value for --consuming-private-key (64 hex chars)")
	fs.StringVar(&cfg.NodeLogLevel, "node-log-level", cfg.NodeLogLevel, "Value for --log-level")

	// Timing
	fs.DurationVar(&cfg.StartDelay, "start-delay", cfg.StartDelay, "Sleep after spawning before returning the handle")
	fs.DurationVar(&cfg.LogPollInterval, "log-poll", cfg.LogPollInterval, "Interval between log file reads")
	fs.DurationVar(&cfg.ExitPollInterval, "exit-poll", cfg.ExitPollInterval, "Interval between exit checks")
	fs.DurationVar(&cfg.KillGrace, "kill-grace", cfg.KillGrace, "Grace period before a graceful stop escalates")

	// Readiness
	fs.StringVar(&cfg.ReadyPattern, "ready", cfg.ReadyPattern, "Regex the node log must match before it is considered ready")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", cfg.ReadyTimeout, "Readiness deadline (0 = unbounded)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.PrintMetrics, "print-metrics", cfg.PrintMetrics, "Print harness metrics on exit")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Harness log level: "debug", "info", "warn", "error"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show a live dashboard while the node runs")

	// Diagnostic modes
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
}
