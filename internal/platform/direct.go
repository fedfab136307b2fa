package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Direct runs the node executable itself and signals its process group.
// It is the strategy for platforms with native process control by PID.
type Direct struct {
	Logger *slog.Logger
}

// Name returns "direct".
func (Direct) Name() string { return "direct" }

// Separator returns "/".
func (Direct) Separator() string { return "/" }

// Executable returns name unchanged.
func (Direct) Executable(name string) string { return name }

// Launch spawns the executable with no prefix tokens.
func (Direct) Launch(executable string) (string, []string) {
	return executable, nil
}

// Configure puts the child into its own process group.
func (Direct) Configure(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// Terminate sends SIGTERM (graceful) or SIGKILL to the target's process
// group. A graceful request escalates to SIGKILL once grace elapses.
func (d Direct) Terminate(ctx context.Context, target Target, graceful bool, grace time.Duration) error {
	if target.Process == nil || exited(target.Done) {
		return nil
	}

	if !graceful {
		return ignoreGone(killGroup(target.Process))
	}

	if err := ignoreGone(termGroup(target.Process)); err != nil {
		return err
	}

	select {
	case <-target.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(grace):
		if d.Logger != nil {
			d.Logger.Warn("force_killing_process",
				"pid", target.Process.Pid,
				"grace", grace.String(),
			)
		}
		return ignoreGone(killGroup(target.Process))
	}
}

// ignoreGone treats "no such process" as success: the target exited between
// the liveness check and the signal.
func ignoreGone(err error) error {
	if err == nil || errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err) {
		return nil
	}
	return fmt.Errorf("signal process: %w", err)
}
