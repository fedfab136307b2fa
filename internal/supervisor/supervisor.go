package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/randomizedcoder/go-node-harness/internal/config"
	"github.com/randomizedcoder/go-node-harness/internal/logging"
	"github.com/randomizedcoder/go-node-harness/internal/metrics"
	"github.com/randomizedcoder/go-node-harness/internal/platform"
	"github.com/randomizedcoder/go-node-harness/pkg/command"
)

// MaxLogWait is the readiness ceiling used when no timeout is given.
const MaxLogWait = 0xFFFFFFFF * time.Millisecond

// Callbacks contains optional callback functions for node events.
type Callbacks struct {
	// OnStateChange is called when a node changes state.
	OnStateChange func(runID string, oldState, newState State)

	// OnStart is called once the process is spawned.
	OnStart func(runID string, pid int)

	// OnExit is called after the process is reaped. code is nil when the
	// process was terminated by a signal.
	OnExit func(runID string, code *int, uptime time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	// Binary is the resolved node executable.
	Binary   string
	Strategy platform.Strategy

	DataDir          string
	LogFileName      string
	DatabaseFileName string

	// Standard node arguments
	DNSServers   string
	PrivateKey   string
	NodeLogLevel string

	StartDelay       time.Duration
	LogPollInterval  time.Duration
	ExitPollInterval time.Duration
	KillGrace        time.Duration

	// Env is appended to the harness environment.
	Env []string

	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Verbose   bool
	Callbacks Callbacks
}

// Supervisor launches node processes. It holds no per-process state; every
// Start returns an independent Node.
type Supervisor struct {
	cfg     Config
	logger  *slog.Logger
	program string
	prefix  []string
}

// New creates a Supervisor, applying defaults for zero-valued fields.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("%w: no node binary configured", ErrStartup)
	}

	defaults := config.DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Strategy == nil {
		cfg.Strategy = platform.Current(cfg.Logger)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.LogFileName == "" {
		cfg.LogFileName = defaults.LogFileName
	}
	if cfg.DatabaseFileName == "" {
		cfg.DatabaseFileName = defaults.DatabaseFileName
	}
	if cfg.DNSServers == "" {
		cfg.DNSServers = defaults.DNSServers
	}
	if cfg.PrivateKey == "" {
		cfg.PrivateKey = defaults.PrivateKey
	}
	if cfg.NodeLogLevel == "" {
		cfg.NodeLogLevel = defaults.NodeLogLevel
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	if cfg.LogPollInterval <= 0 {
		cfg.LogPollInterval = defaults.LogPollInterval
	}
	if cfg.ExitPollInterval <= 0 {
		cfg.ExitPollInterval = defaults.ExitPollInterval
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaults.KillGrace
	}

	program, prefix := cfg.Strategy.Launch(cfg.Binary)

	return &Supervisor{
		cfg:     cfg,
		logger:  cfg.Logger,
		program: program,
		prefix:  prefix,
	}, nil
}

// FromConfig builds a Supervisor from harness configuration, resolving the
// node binary from the invocation path unless an explicit path is set.
func FromConfig(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*Supervisor, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	strategy := platform.Current(logger)

	binary := cfg.BinaryPath
	if binary == "" {
		var err error
		binary, err = platform.ResolveBinary(
			cfg.InvocationPath,
			strategy.Separator(),
			cfg.Marker,
			strategy.Executable(cfg.BinaryName),
		)
		if err != nil {
			return nil, err
		}
	}

	return New(Config{
		Binary:           binary,
		Strategy:         strategy,
		DataDir:          cfg.DataDir,
		LogFileName:      cfg.LogFileName,
		DatabaseFileName: cfg.DatabaseFileName,
		DNSServers:       cfg.DNSServers,
		PrivateKey:       cfg.PrivateKey,
		NodeLogLevel:     cfg.NodeLogLevel,
		StartDelay:       cfg.StartDelay,
		LogPollInterval:  cfg.LogPollInterval,
		ExitPollInterval: cfg.ExitPollInterval,
		KillGrace:        cfg.KillGrace,
		Logger:           logger,
		Metrics:          collector,
		Verbose:          cfg.Verbose,
	})
}

// Binary returns the resolved node executable.
func (s *Supervisor) Binary() string { return s.cfg.Binary }

// Strategy returns the platform strategy in use.
func (s *Supervisor) Strategy() platform.Strategy { return s.cfg.Strategy }

// LogPath returns the node log file path.
func (s *Supervisor) LogPath() string {
	return filepath.Join(s.cfg.DataDir, s.cfg.LogFileName)
}

// DatabasePath returns the node database path.
func (s *Supervisor) DatabasePath() string {
	return filepath.Join(s.cfg.DataDir, s.cfg.DatabaseFileName)
}

// PrefixArgs returns the tokens every invocation starts with: the launch
// prefix of the platform strategy followed by the data directory.
func (s *Supervisor) PrefixArgs() *command.Config {
	c := command.New()
	for _, tok := range s.prefix {
		c.Opt(tok)
	}
	return c.Pair("--data-directory", s.cfg.DataDir)
}

// StandardArgs returns PrefixArgs plus the default node arguments.
func (s *Supervisor) StandardArgs() *command.Config {
	return s.PrefixArgs().
		Pair("--dns-servers", s.cfg.DNSServers).
		Pair("--consuming-private-key", s.cfg.PrivateKey).
		Pair("--log-level", s.cfg.NodeLogLevel)
}

// RemoveDatabase deletes the node's persisted database. A missing file is
// not an error.
func (s *Supervisor) RemoveDatabase() error {
	path := s.DatabasePath()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: couldn't remove preexisting database at %s: %w", ErrStateCleanup, path, err)
	}
	return nil
}

// Start removes the database, spawns the node with the standard arguments
// followed by extra, and sleeps the start delay so the node can open its log
// file and sockets. The returned Node is running (or already stopped if the
// node exited during the delay). The delay is not a readiness check: call
// WaitForLog before relying on the node. ctx bounds the start delay only; the
// caller owns the process from here and must Kill it.
func (s *Supervisor) Start(ctx context.Context, extra *command.Config) (*Node, error) {
	if err := s.RemoveDatabase(); err != nil {
		return nil, err
	}

	args := s.StandardArgs().Extend(extra)
	n := newNode(s, args.Args())
	if err := n.spawn(); err != nil {
		return nil, err
	}

	if s.cfg.StartDelay > 0 {
		timer := time.NewTimer(s.cfg.StartDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			_, _ = n.Kill()
			return nil, ctx.Err()
		}
	}

	return n, nil
}

// DumpConfig runs the node with --dump-config to completion.
func (s *Supervisor) DumpConfig(ctx context.Context) (string, error) {
	return s.runToCompletion(ctx, metrics.ModeDumpConfig, s.PrefixArgs().Opt("--dump-config"))
}

// GenerateWallet runs the node with --generate-wallet and extra to completion.
func (s *Supervisor) GenerateWallet(ctx context.Context, extra *command.Config) (string, error) {
	return s.runToCompletion(ctx, metrics.ModeGenerateWallet, s.PrefixArgs().Opt("--generate-wallet").Extend(extra))
}

// RecoverWallet runs the node with --recover-wallet and extra to completion.
func (s *Supervisor) RecoverWallet(ctx context.Context, extra *command.Config) (string, error) {
	return s.runToCompletion(ctx, metrics.ModeRecoverWallet, s.PrefixArgs().Opt("--recover-wallet").Extend(extra))
}

// runToCompletion spawns the node, waits for it to exit and returns both
// console streams as "stdout:\n<out>\nstderr:\n<err>". A non-zero exit is
// reported through the output, not as an error.
func (s *Supervisor) runToCompletion(ctx context.Context, mode string, args *command.Config) (string, error) {
	if err := s.RemoveDatabase(); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.program, args.Args()...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = s.environ()
	cmd.WaitDelay = s.cfg.KillGrace
	s.cfg.Strategy.Configure(cmd)
	cmd.Cancel = func() error {
		return s.cfg.Strategy.Terminate(context.Background(), platform.Target{
			Process:    cmd.Process,
			Executable: s.cfg.Binary,
		}, false, 0)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"mode", mode,
			"binary", s.cfg.Binary,
			"error", err,
		)
		return "", fmt.Errorf("%w: %s %s: %w", ErrStartup, mode, s.cfg.Binary, err)
	}
	s.cfg.Metrics.NodeLaunched(mode)
	s.logger.Debug("node_run_started",
		"mode", mode,
		"pid", cmd.Process.Pid,
		"args", args.String(),
	)

	err := cmd.Wait()
	uptime := time.Since(start)
	code := exitCode(cmd.ProcessState)
	s.cfg.Metrics.RecordExit(code, uptime)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s interrupted: %w", mode, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("%s: wait: %w", mode, err)
	}

	s.logger.Debug("node_run_finished",
		"mode", mode,
		"exit_code", formatCode(code),
		"uptime", uptime.String(),
	)

	return fmt.Sprintf("stdout:\n%s\nstderr:\n%s", lossy(stdout.Bytes()), lossy(stderr.Bytes())), nil
}

func (s *Supervisor) environ() []string {
	if len(s.cfg.Env) == 0 {
		return nil
	}
	return append(os.Environ(), s.cfg.Env...)
}

// exitCode returns the raw exit status, or nil if the process did not exit
// normally.
func exitCode(ps *os.ProcessState) *int {
	if ps == nil {
		return nil
	}
	code := ps.ExitCode()
	if code < 0 {
		return nil
	}
	return &code
}

func formatCode(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprint(*code)
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
