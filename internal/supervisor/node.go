package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-node-harness/internal/logging"
	"github.com/randomizedcoder/go-node-harness/internal/metrics"
	"github.com/randomizedcoder/go-node-harness/internal/platform"
)

// Node is the handle to one running node process. It exclusively owns the
// process: nothing else signals or reaps it.
type Node struct {
	sup    *Supervisor
	logger *slog.Logger
	runID  string
	args   []string

	cmd    *exec.Cmd
	stdout *logging.OutputHandler
	stderr *logging.OutputHandler

	// done is closed by the reaper once cmd.Wait returns.
	done chan struct{}

	// termMu serializes termination requests.
	termMu sync.Mutex

	mu          sync.RWMutex
	state       State
	startTime   time.Time
	exitTime    time.Time
	code        *int
	readyAfter  time.Duration
	logContents string
}

// Status is a point-in-time snapshot of a Node.
type Status struct {
	RunID      string
	PID        int
	State      State
	Binary     string
	Args       []string
	StartTime  time.Time
	Uptime     time.Duration
	ExitCode   *int
	ReadyAfter time.Duration
	LogBytes   int

	StdoutLines int
	StderrLines int
	ErrorCounts map[string]int
}

func newNode(s *Supervisor, args []string) *Node {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	return &Node{
		sup:    s,
		logger: logger,
		runID:  runID,
		args:   args,
		stdout: logging.NewOutputHandler("stdout", runID, s.logger, s.cfg.Verbose),
		stderr: logging.NewOutputHandler("stderr", runID, s.logger, s.cfg.Verbose),
		done:   make(chan struct{}),
		state:  StateCreated,
	}
}

// spawn starts the process and the reaper goroutine.
func (n *Node) spawn() error {
	n.setState(StateStarting)

	cmd := exec.Command(n.sup.program, n.args...)
	cmd.Stdout = n.stdout
	cmd.Stderr = n.stderr
	cmd.Env = n.sup.environ()
	// Grandchildren holding the output pipes must not block the reaper.
	cmd.WaitDelay = n.sup.cfg.KillGrace
	n.sup.cfg.Strategy.Configure(cmd)
	n.cmd = cmd

	start := time.Now()
	if err := cmd.Start(); err != nil {
		n.logger.Error("failed_to_start_process",
			"binary", n.sup.cfg.Binary,
			"error", err,
		)
		n.setState(StateStopped)
		close(n.done)
		return fmt.Errorf("%w: %s: %w", ErrStartup, n.sup.cfg.Binary, err)
	}

	n.mu.Lock()
	n.startTime = start
	n.mu.Unlock()
	n.setState(StateRunning)

	pid := cmd.Process.Pid
	n.logger = n.logger.With("pid", pid)
	n.sup.cfg.Metrics.NodeLaunched(metrics.ModeDaemon)
	n.logger.Info("node_started",
		"binary", n.sup.cfg.Binary,
		"strategy", n.sup.cfg.Strategy.Name(),
	)
	n.logger.Debug("node_command", "program", n.sup.program, "args", n.args)
	if cb := n.sup.cfg.Callbacks.OnStart; cb != nil {
		cb(n.runID, pid)
	}

	go n.reap()
	return nil
}

// reap waits for the process and publishes its exit state by closing done.
func (n *Node) reap() {
	err := n.cmd.Wait()
	n.stdout.Flush()
	n.stderr.Flush()

	var exitErr *exec.ExitError
	if err != nil && errors.As(err, &exitErr) {
		err = nil
	}
	code := exitCode(n.cmd.ProcessState)

	n.mu.Lock()
	n.exitTime = time.Now()
	n.code = code
	uptime := n.exitTime.Sub(n.startTime)
	n.mu.Unlock()

	n.setState(StateStopped)
	n.sup.cfg.Metrics.RecordExit(code, uptime)
	n.logger.Info("node_exited",
		"exit_code", formatCode(code),
		"uptime", uptime.String(),
	)
	if err != nil {
		n.logger.Warn("node_wait_error", "error", err)
	}
	if cb := n.sup.cfg.Callbacks.OnExit; cb != nil {
		cb(n.runID, code, uptime)
	}

	close(n.done)
}

// =============================================================================
// Termination
// =============================================================================

// Kill forcefully terminates the node and blocks until it has been reaped.
// Killing a node that already exited returns its exit code and no error.
func (n *Node) Kill() (*int, error) {
	return n.terminate(context.Background(), false, 0)
}

// KillContext is Kill bounded by ctx.
func (n *Node) KillContext(ctx context.Context) (*int, error) {
	return n.terminate(ctx, false, 0)
}

// Stop asks the node to exit gracefully, forcing it after grace, and blocks
// until it has been reaped.
func (n *Node) Stop(ctx context.Context, grace time.Duration) (*int, error) {
	if grace <= 0 {
		grace = n.sup.cfg.KillGrace
	}
	return n.terminate(ctx, true, grace)
}

func (n *Node) terminate(ctx context.Context, graceful bool, grace time.Duration) (*int, error) {
	n.termMu.Lock()
	defer n.termMu.Unlock()

	if n.Exited() {
		n.sup.cfg.Metrics.NodeKilled(metrics.KillAlreadyExited)
		n.logger.Debug("node_already_exited", "exit_code", formatCode(n.ExitCode()))
		return n.ExitCode(), nil
	}

	n.setState(StateStopping)
	target := platform.Target{
		Process:    n.cmd.Process,
		Executable: n.sup.cfg.Binary,
		Done:       n.done,
	}
	if err := n.sup.cfg.Strategy.Terminate(ctx, target, graceful, grace); err != nil {
		return nil, fmt.Errorf("terminate node %s: %w", n.runID, err)
	}

	select {
	case <-n.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	outcome := metrics.KillForced
	if graceful {
		outcome = metrics.KillGraceful
	}
	n.sup.cfg.Metrics.NodeKilled(outcome)
	n.logger.Info("node_killed",
		"graceful", graceful,
		"exit_code", formatCode(n.ExitCode()),
	)
	return n.ExitCode(), nil
}

// =============================================================================
// Waiting
// =============================================================================

// WaitForLog rereads the whole node log file until pattern matches it. The
// snapshot read on each attempt is kept for LogContents. A timeout of zero
// means MaxLogWait. On match the node enters StateReady.
func (n *Node) WaitForLog(ctx context.Context, pattern string, timeout time.Duration) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile log pattern %q: %w", pattern, err)
	}

	limit := timeout
	if limit <= 0 {
		limit = MaxLogWait
	}
	path := n.sup.LogPath()
	started := time.Now()

	for {
		content, err := readLog(path)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.logContents = content
		n.mu.Unlock()

		if re.MatchString(content) {
			n.markReady()
			return nil
		}

		elapsed := time.Since(started)
		if elapsed >= limit {
			n.sup.cfg.Metrics.RecordTimeout(metrics.TimeoutReadiness)
			n.logger.Warn("readiness_timeout",
				"pattern", pattern,
				"elapsed", elapsed.String(),
				"limit", limit.String(),
			)
			return &TimeoutError{
				Op:      OpWaitForLog,
				Elapsed: elapsed,
				Limit:   limit,
				Detail:  fmt.Sprintf("pattern %q not found in %s", pattern, path),
			}
		}

		if err := sleep(ctx, n.sup.cfg.LogPollInterval); err != nil {
			return err
		}
	}
}

func (n *Node) markReady() {
	n.mu.Lock()
	if n.state != StateRunning {
		n.mu.Unlock()
		return
	}
	n.readyAfter = time.Since(n.startTime)
	readyAfter := n.readyAfter
	n.mu.Unlock()

	n.setState(StateReady)
	n.sup.cfg.Metrics.RecordReadiness(readyAfter)
	n.logger.Info("readiness_matched", "after", readyAfter.String())
}

// WaitForExit polls for process exit every exit poll interval without
// blocking on the process. It returns the exit code (nil when the process
// was terminated by a signal), or an ErrExitTimeout TimeoutError once
// timeout has elapsed.
func (n *Node) WaitForExit(ctx context.Context, timeout time.Duration) (*int, error) {
	started := time.Now()
	deadline := started.Add(timeout)

	for time.Now().Before(deadline) {
		if n.Exited() {
			return n.ExitCode(), nil
		}
		if err := sleep(ctx, n.sup.cfg.ExitPollInterval); err != nil {
			return nil, err
		}
	}
	if n.Exited() {
		return n.ExitCode(), nil
	}

	n.sup.cfg.Metrics.RecordTimeout(metrics.TimeoutExit)
	return nil, &TimeoutError{
		Op:      OpWaitForExit,
		Elapsed: time.Since(started),
		Limit:   timeout,
	}
}

// readLog returns the whole file. A log the node has not created yet reads
// as empty.
func readLog(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read node log: %w", err)
	}
	return string(b), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Accessors
// =============================================================================

// RunID returns the unique identifier of this launch.
func (n *Node) RunID() string { return n.runID }

// PID returns the OS process id, or 0 if the spawn failed.
func (n *Node) PID() int {
	if n.cmd == nil || n.cmd.Process == nil {
		return 0
	}
	return n.cmd.Process.Pid
}

// Args returns a copy of the arguments the node was started with.
func (n *Node) Args() []string {
	return append([]string(nil), n.args...)
}

// Done is closed once the process has been reaped.
func (n *Node) Done() <-chan struct{} { return n.done }

// Exited reports whether the process has been reaped.
func (n *Node) Exited() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code once reaped. It is nil while running and
// when the process was terminated by a signal.
func (n *Node) ExitCode() *int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.code == nil {
		return nil
	}
	code := *n.code
	return &code
}

// State returns the current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// LogContents returns the log snapshot read by the last WaitForLog attempt.
func (n *Node) LogContents() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.logContents
}

// RecentOutput returns up to lines recent lines of each console stream.
func (n *Node) RecentOutput(lines int) (stdout, stderr []string) {
	return n.stdout.RecentLines(lines), n.stderr.RecentLines(lines)
}

// Uptime returns the time since spawn, or the total lifetime once reaped.
func (n *Node) Uptime() time.Duration {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.startTime.IsZero() {
		return 0
	}
	if !n.exitTime.IsZero() {
		return n.exitTime.Sub(n.startTime)
	}
	return time.Since(n.startTime)
}

// Status returns a snapshot of the node.
func (n *Node) Status() Status {
	errorCounts := n.stderr.CountErrors()
	for k, v := range n.stdout.CountErrors() {
		errorCounts[k] += v
	}
	uptime := n.Uptime()

	n.mu.RLock()
	defer n.mu.RUnlock()

	var code *int
	if n.code != nil {
		c := *n.code
		code = &c
	}

	return Status{
		RunID:       n.runID,
		PID:         n.PID(),
		State:       n.state,
		Binary:      n.sup.cfg.Binary,
		Args:        append([]string(nil), n.args...),
		StartTime:   n.startTime,
		Uptime:      uptime,
		ExitCode:    code,
		ReadyAfter:  n.readyAfter,
		LogBytes:    len(n.logContents),
		StdoutLines: n.stdout.Total(),
		StderrLines: n.stderr.Total(),
		ErrorCounts: errorCounts,
	}
}

// setState updates the state and calls the callback if registered. Once
// stopped, a node never leaves StateStopped.
func (n *Node) setState(newState State) {
	n.mu.Lock()
	oldState := n.state
	if oldState == StateStopped || oldState == newState {
		n.mu.Unlock()
		return
	}
	n.state = newState
	n.mu.Unlock()

	n.logger.Debug("node_state_changed", "from", oldState.String(), "to", newState.String())
	if cb := n.sup.cfg.Callbacks.OnStateChange; cb != nil {
		cb(n.runID, oldState, newState)
	}
}
