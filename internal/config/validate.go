package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/randomizedcoder/go-node-harness/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or the joined validation errors.
func Validate(cfg *Config) error {
	var errs []error

	// Either an explicit binary or enough to resolve one
	if cfg.BinaryPath == "" {
		if cfg.BinaryName == "" {
			errs = append(errs, ValidationError{Field: "binary_name", Message: "is required unless binary_path is set"})
		}
		if cfg.Marker == "" {
			errs = append(errs, ValidationError{Field: "marker", Message: "is required unless binary_path is set"})
		}
		if cfg.InvocationPath == "" {
			errs = append(errs, ValidationError{Field: "invocation_path", Message: "is required unless binary_path is set"})
		}
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		errs = append(errs, ValidationError{Field: "data_dir", Message: "is required"})
	}
	if cfg.LogFileName == "" {
		errs = append(errs, ValidationError{Field: "log_file_name", Message: "is required"})
	}
	if cfg.DatabaseFileName == "" {
		errs = append(errs, ValidationError{Field: "database_file_name", Message: "is required"})
	}

	// The node rejects anything but 32 bytes of hex
	if len(cfg.PrivateKey) != 64 {
		errs = append(errs, ValidationError{
			Field:   "private_key",
			Message: fmt.Sprintf("must be 64 hex characters (got %d)", len(cfg.PrivateKey)),
		})
	} else if _, err := hex.DecodeString(cfg.PrivateKey); err != nil {
		errs = append(errs, ValidationError{Field: "private_key", Message: "must be hexadecimal"})
	}

	// Timing
	if cfg.StartDelay < 0 {
		errs = append(errs, ValidationError{Field: "start_delay", Message: "must not be negative"})
	}
	if cfg.LogPollInterval <= 0 {
		errs = append(errs, ValidationError{Field: "log_poll_interval", Message: "must be positive"})
	}
	if cfg.ExitPollInterval <= 0 {
		errs = append(errs, ValidationError{Field: "exit_poll_interval", Message: "must be positive"})
	}
	if cfg.KillGrace <= 0 {
		errs = append(errs, ValidationError{Field: "kill_grace", Message: "must be positive"})
	}
	if cfg.ReadyTimeout < 0 {
		errs = append(errs, ValidationError{Field: "ready_timeout", Message: "must not be negative"})
	}

	// Log format must be valid
	if !logging.IsFormat(cfg.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
