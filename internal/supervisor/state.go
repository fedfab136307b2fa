// Package supervisor launches the node binary, waits for it to become ready
// or to exit, and guarantees it is terminated.
package supervisor

// State represents the lifecycle position of a supervised node.
type State int

const (
	// StateCreated is the initial state before the process is spawned.
	StateCreated State = iota

	// StateStarting indicates the process is being spawned.
	StateStarting

	// StateRunning indicates the process is alive but no readiness pattern
	// has matched yet.
	StateRunning

	// StateReady indicates WaitForLog matched its pattern.
	StateReady

	// StateStopping indicates a termination request is in flight.
	StateStopping

	// StateStopped indicates the process has been reaped.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true while an OS process may still exist.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateReady || s == StateStopping
}

// IsTerminal returns true if the process has been reaped.
func (s State) IsTerminal() bool {
	return s == StateStopped
}
