package platform

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// Target is the process a Strategy terminates.
type Target struct {
	// Process is the spawned process (the shell on Indirect).
	Process *os.Process

	// Executable is the resolved node executable path.
	Executable string

	// Done is closed once the process has been reaped.
	Done <-chan struct{}
}

// Strategy isolates everything that differs between operating system
// families: how the executable is named, how it is launched and how it is
// terminated.
type Strategy interface {
	// Name returns a short identifier for logs ("direct" or "indirect").
	Name() string

	// Separator is the path separator used when resolving the executable.
	Separator() string

	// Executable returns the file name of the node binary for this platform.
	Executable(name string) string

	// Launch returns the program to spawn and the tokens that must precede
	// the node's own arguments.
	Launch(executable string) (program string, prefix []string)

	// Configure applies platform process attributes before Start.
	Configure(cmd *exec.Cmd)

	// Terminate asks the target to exit. Graceful termination waits up to
	// grace before forcing. A target that has already exited is not an error.
	Terminate(ctx context.Context, target Target, graceful bool, grace time.Duration) error
}

// exited reports whether done is already closed.
func exited(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}
