package main

import (
	"fmt"
	"io"

	"github.com/randomizedcoder/go-node-harness/internal/config"
)

// printBanner prints the startup banner.
func printBanner(w io.Writer, cfg *config.Config, binary string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                          nodeharness                              ║")
	fmt.Fprintln(w, "║          Launch, await and supervise the node binary              ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Binary:      %s\n", binary)
	fmt.Fprintf(w, "  Data dir:    %s\n", cfg.DataDir)
	if cfg.ReadyPattern != "" {
		fmt.Fprintf(w, "  Ready when:  /%s/ (timeout %s)\n", cfg.ReadyPattern, readyTimeout(cfg))
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}

func readyTimeout(cfg *config.Config) string {
	if cfg.ReadyTimeout <= 0 {
		return "none"
	}
	return cfg.ReadyTimeout.String()
}
