package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BinaryName != "SubstratumNode" {
		t.Errorf("BinaryName = %q", cfg.BinaryName)
	}
	if cfg.Marker != "target" {
		t.Errorf("Marker = %q", cfg.Marker)
	}
	if cfg.DNSServers != "8.8.8.8" {
		t.Errorf("DNSServers = %q", cfg.DNSServers)
	}
	if cfg.NodeLogLevel != "trace" {
		t.Errorf("NodeLogLevel = %q", cfg.NodeLogLevel)
	}
	if cfg.PrivateKey != strings.Repeat("C", 64) {
		t.Errorf("PrivateKey = %q", cfg.PrivateKey)
	}
	if cfg.StartDelay != 500*time.Millisecond {
		t.Errorf("StartDelay = %v", cfg.StartDelay)
	}
	if cfg.LogPollInterval != 200*time.Millisecond {
		t.Errorf("LogPollInterval = %v", cfg.LogPollInterval)
	}
	if cfg.ExitPollInterval != 100*time.Millisecond {
		t.Errorf("ExitPollInterval = %v", cfg.ExitPollInterval)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join("var", "node")

	if got, want := cfg.LogPath(), filepath.Join("var", "node", "SubstratumNode.log"); got != want {
		t.Errorf("LogPath = %q, want %q", got, want)
	}
	if got, want := cfg.DatabasePath(), filepath.Join("var", "node", "node-data.db"); got != want {
		t.Errorf("DatabasePath = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		field  string // empty = valid
	}{
		{"valid", func(c *Config) {}, ""},
		{"explicit binary skips resolution inputs", func(c *Config) {
			c.BinaryPath = "/bin/node"
			c.Marker = ""
			c.InvocationPath = ""
		}, ""},
		{"missing marker", func(c *Config) { c.Marker = "" }, "marker"},
		{"missing binary name", func(c *Config) { c.BinaryName = "" }, "binary_name"},
		{"missing invocation", func(c *Config) { c.InvocationPath = "" }, "invocation_path"},
		{"missing data dir", func(c *Config) { c.DataDir = " " }, "data_dir"},
		{"short key", func(c *Config) { c.PrivateKey = "ABCD" }, "private_key"},
		{"non-hex key", func(c *Config) { c.PrivateKey = strings.Repeat("Z", 64) }, "private_key"},
		{"negative start delay", func(c *Config) { c.StartDelay = -time.Second }, "start_delay"},
		{"zero log poll", func(c *Config) { c.LogPollInterval = 0 }, "log_poll_interval"},
		{"zero exit poll", func(c *Config) { c.ExitPollInterval = 0 }, "exit_poll_interval"},
		{"zero kill grace", func(c *Config) { c.KillGrace = 0 }, "kill_grace"},
		{"negative ready timeout", func(c *Config) { c.ReadyTimeout = -1 }, "ready_timeout"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.InvocationPath = "/src/target/debug/deps/x"
			tc.modify(cfg)

			err := Validate(cfg)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for %s", tc.field)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention %s", err, tc.field)
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError in %v", err)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "xml"
	cfg.KillGrace = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "log_format") || !strings.Contains(err.Error(), "kill_grace") {
		t.Errorf("expected both fields in %q", err)
	}
}

func TestPairList(t *testing.T) {
	var p PairList

	if err := p.Set("--ip=1.2.3.4"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := p.Set("--neighbor=key:1.2.3.4=5"); err != nil {
		t.Fatalf("Set with '=' in value: %v", err)
	}
	if err := p.Set("novalue"); err == nil {
		t.Error("expected error for missing '='")
	}
	if err := p.Set("=value"); err == nil {
		t.Error("expected error for empty flag")
	}

	if len(p) != 2 || p[1][1] != "key:1.2.3.4=5" {
		t.Errorf("unexpected pairs: %v", p)
	}
	if got, want := p.String(), "--ip=1.2.3.4, --neighbor=key:1.2.3.4=5"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBindFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	err := fs.Parse([]string{
		"--binary", "/opt/node",
		"--data-dir", "/var/node",
		"--ready", "listening",
		"--ready-timeout", "3s",
		"-v",
		"--log-format", "json",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.BinaryPath != "/opt/node" || cfg.DataDir != "/var/node" {
		t.Errorf("paths not bound: %+v", cfg)
	}
	if cfg.ReadyPattern != "listening" || cfg.ReadyTimeout != 3*time.Second {
		t.Errorf("readiness not bound: %q %v", cfg.ReadyPattern, cfg.ReadyTimeout)
	}
	if !cfg.Verbose || cfg.LogFormat != "json" {
		t.Errorf("observability not bound: verbose=%v format=%q", cfg.Verbose, cfg.LogFormat)
	}
	// Untouched flags keep defaults
	if cfg.DNSServers != "8.8.8.8" {
		t.Errorf("DNSServers = %q", cfg.DNSServers)
	}
}
