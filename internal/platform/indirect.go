package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// taskkillNotFound is taskkill's exit status when no process matched.
const taskkillNotFound = 128

// Indirect launches the node through the command interpreter and
// terminates it by image name. It is the strategy for platforms without
// process-group termination by PID.
//
// Killing by image name affects every process with that file name on the
// host, including nodes started by tests running concurrently.
type Indirect struct {
	Logger *slog.Logger

	// Shell is the command interpreter; defaults to "cmd".
	Shell string

	// Killer is the termination utility; defaults to "taskkill".
	Killer string
}

// Name returns "indirect".
func (Indirect) Name() string { return "indirect" }

// Separator returns `\`.
func (Indirect) Separator() string { return `\` }

// Executable appends ".exe" unless already present.
func (Indirect) Executable(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name
	}
	return name + ".exe"
}

// Launch runs "<shell> /c <executable>".
func (i Indirect) Launch(executable string) (string, []string) {
	return i.shell(), []string{"/c", executable}
}

// Configure is a no-op.
func (Indirect) Configure(cmd *exec.Cmd) {}

// KillArgs returns the arguments passed to the termination utility.
func (Indirect) KillArgs(executable string, graceful bool) []string {
	image := executable
	if idx := strings.LastIndexAny(image, `\/`); idx >= 0 {
		image = image[idx+1:]
	}
	args := []string{"/IM", image}
	if !graceful {
		args = append(args, "/F")
	}
	return args
}

// Terminate runs the termination utility against the executable's image
// name. A graceful request that the utility refuses, or that the node does
// not honor within grace, is repeated with /F. If the shell still has not
// been reaped after the forced request, the shell itself is killed.
func (i Indirect) Terminate(ctx context.Context, target Target, graceful bool, grace time.Duration) error {
	if exited(target.Done) {
		return nil
	}

	if i.Logger != nil {
		i.Logger.Warn("kill_by_image_name",
			"image", i.KillArgs(target.Executable, false)[1],
			"reason", "terminates every process with this image name on the host",
		)
	}

	if graceful {
		err := i.runKiller(ctx, target.Executable, true)
		switch {
		case err != nil:
			if i.Logger != nil {
				i.Logger.Warn("graceful_kill_refused", "error", err)
			}
		case target.Done == nil:
			return nil
		default:
			select {
			case <-target.Done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(grace):
			}
		}
		if exited(target.Done) {
			return nil
		}
		if i.Logger != nil {
			i.Logger.Warn("force_killing_process",
				"executable", target.Executable,
				"grace", grace.String(),
			)
		}
	}

	if err := i.runKiller(ctx, target.Executable, false); err != nil {
		return err
	}

	if target.Done == nil {
		return nil
	}
	select {
	case <-target.Done:
	case <-time.After(grace):
		if target.Process != nil {
			_ = target.Process.Kill()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// runKiller invokes the termination utility. "No matching process" counts as
// success.
func (i Indirect) runKiller(ctx context.Context, executable string, graceful bool) error {
	args := i.KillArgs(executable, graceful)
	out, err := exec.CommandContext(ctx, i.killer(), args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != taskkillNotFound {
			return fmt.Errorf("%s %s: %w: %s", i.killer(), strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func (i Indirect) shell() string {
	if i.Shell != "" {
		return i.Shell
	}
	return "cmd"
}

func (i Indirect) killer() string {
	if i.Killer != "" {
		return i.Killer
	}
	return "taskkill"
}
