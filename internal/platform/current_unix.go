//go:build !windows

package platform

import "log/slog"

// Current returns the Strategy for this build: Direct.
func Current(logger *slog.Logger) Strategy {
	return Direct{Logger: logger}
}
