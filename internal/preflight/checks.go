// Package preflight provides startup validation checks for the node harness.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// requiredFDs covers the node's sockets and database plus harness pipes.
const requiredFDs = 256

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Target describes what the harness is about to launch.
type Target struct {
	Binary       string
	DataDir      string
	LogPath      string
	DatabasePath string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(t Target) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5),
		Passed: true,
	}

	for _, check := range []Check{
		checkBinary(t.Binary),
		checkDataDir(t.DataDir),
		checkFileDescriptors(requiredFDs),
		// Warnings only
		checkStaleFile("stale_database", t.DatabasePath, "removed before every launch"),
		checkStaleFile("stale_log", t.LogPath, "old lines may satisfy a readiness pattern early"),
	} {
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkBinary verifies the node executable exists and is runnable.
func checkBinary(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "node_binary",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    "node_binary",
			Passed:  false,
			Message: fmt.Sprintf("%s is a directory", path),
		}
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return Check{
			Name:    "node_binary",
			Passed:  false,
			Message: fmt.Sprintf("%s is not executable (mode %s)", path, info.Mode().Perm()),
		}
	}

	return Check{
		Name:    "node_binary",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (%d bytes)", path, info.Size()),
	}
}

// checkDataDir verifies the data directory exists and accepts new files.
func checkDataDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "data_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "data_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	f, err := os.CreateTemp(dir, ".nodeharness-preflight-*")
	if err != nil {
		return Check{
			Name:    "data_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
		}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	return Check{
		Name:    "data_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s is writable", filepath.Clean(dir)),
	}
}

// checkStaleFile warns when a file from a previous run is present.
func checkStaleFile(name, path, consequence string) Check {
	if path == "" {
		return Check{Name: name, Passed: true, Message: "not configured"}
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Check{Name: name, Passed: true, Message: "none"}
	}
	if err != nil {
		return Check{Name: name, Passed: true, Warning: true, Message: fmt.Sprintf("unable to check %s: %v", path, err)}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Warning: true,
		Message: fmt.Sprintf("%s exists (%d bytes, modified %s); %s",
			path, info.Size(), info.ModTime().Format("2006-01-02 15:04:05"), consequence),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "node_binary":
		return "build the node (cargo build) or pass --binary"
	case "data_dir":
		return "create the directory or pass a writable --data-dir"
	default:
		return "see documentation"
	}
}
