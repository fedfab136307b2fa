package preflight

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_with_required", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   200,
			Passed:   true,
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "200") {
			t.Error("Should contain actual value")
		}
		if !strings.Contains(s, "100") {
			t.Error("Should contain required value")
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   50,
			Passed:   false,
		}
		s := c.String()
		if !strings.Contains(s, "✗") {
			t.Error("Failed check should have ✗")
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Warning: true,
			Message: "warning message",
		}
		s := c.String()
		if !strings.Contains(s, "⚠") {
			t.Error("Warning check should have ⚠")
		}
		if !strings.Contains(s, "warning message") {
			t.Error("Should contain message")
		}
	})

	t.Run("passed_with_message_only", func(t *testing.T) {
		c := Check{
			Name:    "test_check",
			Passed:  true,
			Message: "all good",
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "all good") {
			t.Error("Should contain message")
		}
	})
}

// newTarget creates a runnable binary and a writable data dir.
func newTarget(t *testing.T) Target {
	t.Helper()
	dir := t.TempDir()
	binary := filepath.Join(dir, "SubstratumNode")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	dataDir := filepath.Join(dir, "data")
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return Target{
		Binary:       binary,
		DataDir:      dataDir,
		LogPath:      filepath.Join(dataDir, "SubstratumNode.log"),
		DatabasePath: filepath.Join(dataDir, "node-data.db"),
	}
}

func findCheck(t *testing.T, result *Result, name string) Check {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not in results", name)
	return Check{}
}

func TestRunAll_Passes(t *testing.T) {
	result := RunAll(newTarget(t))

	if len(result.Checks) != 5 {
		t.Errorf("Expected 5 checks, got %d", len(result.Checks))
	}
	for _, name := range []string{"node_binary", "data_dir", "stale_database", "stale_log"} {
		c := findCheck(t, result, name)
		if !c.Passed || c.Warning {
			t.Errorf("%s should pass cleanly: %s", name, c.Message)
		}
	}
}

func TestRunAll_MissingBinary(t *testing.T) {
	target := newTarget(t)
	target.Binary = "/nonexistent/SubstratumNode"

	result := RunAll(target)
	c := findCheck(t, result, "node_binary")
	if c.Passed {
		t.Error("node_binary should fail for a missing file")
	}
	if !strings.Contains(c.Message, "not found") {
		t.Errorf("Message should mention 'not found': %s", c.Message)
	}
	if result.Passed {
		t.Error("Result should fail when the binary is missing")
	}
}

func TestCheckBinary_EdgeCases(t *testing.T) {
	t.Run("directory_as_path", func(t *testing.T) {
		if check := checkBinary(t.TempDir()); check.Passed {
			t.Error("Directory as binary path should fail")
		}
	})

	t.Run("not_executable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("no executable bit on windows")
		}
		path := filepath.Join(t.TempDir(), "node")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		check := checkBinary(path)
		if check.Passed || !strings.Contains(check.Message, "not executable") {
			t.Errorf("non-executable file should fail: %+v", check)
		}
	})

	t.Run("empty_path", func(t *testing.T) {
		if check := checkBinary(""); check.Passed {
			t.Error("Empty binary path should fail")
		}
	})
}

func TestCheckDataDir(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		if c := checkDataDir(filepath.Join(t.TempDir(), "absent")); c.Passed {
			t.Error("missing data dir should fail")
		}
	})

	t.Run("file_not_dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if c := checkDataDir(path); c.Passed {
			t.Error("regular file should fail")
		}
	})

	t.Run("leaves_no_probe_file", func(t *testing.T) {
		dir := t.TempDir()
		if c := checkDataDir(dir); !c.Passed {
			t.Fatalf("writable dir should pass: %s", c.Message)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("probe file left behind: %v", entries)
		}
	})
}

func TestRunAll_StaleFilesWarn(t *testing.T) {
	target := newTarget(t)
	for _, p := range []string{target.DatabasePath, target.LogPath} {
		if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result := RunAll(target)
	for _, name := range []string{"stale_database", "stale_log"} {
		c := findCheck(t, result, name)
		if !c.Passed || !c.Warning {
			t.Errorf("%s should be a passing warning: %+v", name, c)
		}
	}
	if !result.Passed {
		t.Error("warnings must not fail the result")
	}
	if c := findCheck(t, result, "stale_log"); !strings.Contains(c.Message, "readiness pattern") {
		t.Errorf("stale_log message = %q", c.Message)
	}
}

func TestCheckStaleFile_NotConfigured(t *testing.T) {
	c := checkStaleFile("stale_log", "", "x")
	if !c.Passed || c.Warning {
		t.Errorf("unconfigured path should pass: %+v", c)
	}
}

func TestSuggestFix(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"file_descriptors", "ulimit -n"},
		{"node_binary", "--binary"},
		{"data_dir", "--data-dir"},
		{"unknown", "documentation"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := suggestFix(tc.name)
			if !strings.Contains(fix, tc.expected) {
				t.Errorf("suggestFix(%q) = %q, should contain %q", tc.name, fix, tc.expected)
			}
		})
	}
}

func TestCheckFileDescriptors(t *testing.T) {
	check := checkFileDescriptors(1)

	if check.Name != "file_descriptors" {
		t.Errorf("Name = %q, want file_descriptors", check.Name)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if check.Actual <= 0 {
		t.Errorf("Actual should be positive: %d", check.Actual)
	}
	if !check.Passed {
		t.Errorf("a single descriptor should always be available: %s", check.Message)
	}

	if huge := checkFileDescriptors(1 << 31); huge.Passed {
		t.Error("an impossible requirement should fail")
	}
}

func TestPrintResults(t *testing.T) {
	result := &Result{
		Checks: []Check{
			{Name: "data_dir", Passed: true, Message: "ok"},
			{Name: "file_descriptors", Passed: false, Required: 100, Actual: 50},
		},
		Passed: false,
	}

	var buf bytes.Buffer
	PrintResults(&buf, result)

	out := buf.String()
	if !strings.HasPrefix(out, "Preflight checks:") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "Fix: ulimit -n") {
		t.Errorf("failed check should print a fix: %q", out)
	}
	if strings.Count(out, "Fix:") != 1 {
		t.Errorf("only failed checks get a fix: %q", out)
	}
}
