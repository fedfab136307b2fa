// Package config provides configuration management for go-node-harness.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PlaceholderPrivateKey is the consuming private key handed to every
// launched node. It is not a real key.
var PlaceholderPrivateKey = strings.Repeat("C", 64)

// Config holds all configuration options for the harness.
type Config struct {
	// Node binary
	BinaryPath     string `json:"binary_path"` // explicit path, skips resolution
	BinaryName     string `json:"binary_name"`
	InvocationPath string `json:"invocation_path"` // defaults to os.Args[0]
	Marker         string `json:"marker"`          // build-output directory name

	// Persisted state
	DataDir          string `json:"data_dir"`
	LogFileName      string `json:"log_file_name"`
	DatabaseFileName string `json:"database_file_name"`

	// Default node arguments
	DNSServers   string `json:"dns_servers"`
	PrivateKey   string `json:"private_key"`
	NodeLogLevel string `json:"node_log_level"`

	// Timing
	StartDelay       time.Duration `json:"start_delay"`
	LogPollInterval  time.Duration `json:"log_poll_interval"`
	ExitPollInterval time.Duration `json:"exit_poll_interval"`
	KillGrace        time.Duration `json:"kill_grace"`

	// Readiness (CLI)
	ReadyPattern string        `json:"ready_pattern"`
	ReadyTimeout time.Duration `json:"ready_timeout"` // 0 = practically unbounded

	// Observability
	MetricsAddr  string `json:"metrics_addr"`
	PrintMetrics bool   `json:"print_metrics"`
	Verbose      bool   `json:"verbose"`
	LogFormat    string `json:"log_format"` // json, text
	LogLevel     string `json:"log_level"`
	TUIEnabled   bool   `json:"tui_enabled"`

	// Diagnostic modes
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with the defaults the node tests expect.
func DefaultConfig() *Config {
	invocation := ""
	if len(os.Args) > 0 {
		invocation = os.Args[0]
	}

	return &Config{
		// Node binary
		BinaryName:     "SubstratumNode",
		InvocationPath: invocation,
		Marker:         "target",

		// Persisted state
		DataDir:          os.TempDir(),
		LogFileName:      "SubstratumNode.log",
		DatabaseFileName: "node-data.db",

		// Default node arguments
		DNSServers:   "8.8.8.8",
		PrivateKey:   PlaceholderPrivateKey,
		NodeLogLevel: "trace",

		// Timing
		StartDelay:       500 * time.Millisecond, // time to open the log file and sockets
		LogPollInterval:  200 * time.Millisecond,
		ExitPollInterval: 100 * time.Millisecond,
		KillGrace:        5 * time.Second,

		// Observability
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// LogPath returns the node's log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, c.LogFileName)
}

// DatabasePath returns the node's persisted database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFileName)
}
