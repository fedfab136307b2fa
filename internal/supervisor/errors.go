package supervisor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStartup means the node process could not be spawned.
	ErrStartup = errors.New("node startup failed")

	// ErrReadinessTimeout means no log line matched before the deadline.
	ErrReadinessTimeout = errors.New("readiness timeout")

	// ErrExitTimeout means the node did not terminate before the deadline.
	ErrExitTimeout = errors.New("exit timeout")

	// ErrStateCleanup means persisted node state could not be removed.
	ErrStateCleanup = errors.New("state cleanup failed")
)

// Timeout operations.
const (
	OpWaitForLog  = "wait_for_log"
	OpWaitForExit = "wait_for_exit"
)

// TimeoutError reports a bounded wait that hit its deadline.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
	Limit   time.Duration
	Detail  string
}

func (e *TimeoutError) Error() string {
	var msg string
	switch e.Op {
	case OpWaitForLog:
		msg = fmt.Sprintf("timeout: waited for more than %dms (elapsed %dms)",
			e.Limit.Milliseconds(), e.Elapsed.Milliseconds())
	case OpWaitForExit:
		msg = fmt.Sprintf("waited fruitlessly for node termination for %dms",
			e.Limit.Milliseconds())
	default:
		msg = fmt.Sprintf("%s: timed out after %dms (limit %dms)",
			e.Op, e.Elapsed.Milliseconds(), e.Limit.Milliseconds())
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel matching Op.
func (e *TimeoutError) Unwrap() error {
	switch e.Op {
	case OpWaitForLog:
		return ErrReadinessTimeout
	case OpWaitForExit:
		return ErrExitTimeout
	default:
		return nil
	}
}
