//go:build windows

package platform

import "log/slog"

// Current returns the Strategy for this build: Indirect.
func Current(logger *slog.Logger) Strategy {
	return Indirect{Logger: logger}
}
