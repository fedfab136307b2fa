//go:build !windows

package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func startSleeper(t *testing.T, script string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Direct{}.Configure(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = killGroup(cmd.Process)
		<-done
	})
	return cmd, done
}

func TestDirect_TerminateGraceful(t *testing.T) {
	cmd, done := startSleeper(t, "exec sleep 30")

	err := Direct{}.Terminate(context.Background(), Target{Process: cmd.Process, Done: done}, true, 5*time.Second)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after SIGTERM")
	}
}

func TestDirect_TerminateEscalates(t *testing.T) {
	// The shell ignores SIGTERM, so only the SIGKILL escalation stops it.
	cmd, done := startSleeper(t, "trap '' TERM; while true; do sleep 0.05; done")

	start := time.Now()
	err := Direct{}.Terminate(context.Background(), Target{Process: cmd.Process, Done: done}, true, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after SIGKILL escalation")
	}
	if time.Since(start) < 200*time.Millisecond {
		t.Errorf("escalated before grace elapsed")
	}
}

func TestDirect_TerminateForceful(t *testing.T) {
	cmd, done := startSleeper(t, "exec sleep 30")

	if err := (Direct{}).Terminate(context.Background(), Target{Process: cmd.Process, Done: done}, false, 0); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after SIGKILL")
	}
}

func TestDirect_TerminateAlreadyExited(t *testing.T) {
	cmd, done := startSleeper(t, "exit 0")
	<-done

	// Done is closed: nothing to signal.
	if err := (Direct{}).Terminate(context.Background(), Target{Process: cmd.Process, Done: done}, false, 0); err != nil {
		t.Fatalf("Terminate on exited process: %v", err)
	}
	// Done unknown: the signal hits a reaped process and must still succeed.
	if err := (Direct{}).Terminate(context.Background(), Target{Process: cmd.Process}, false, 0); err != nil {
		t.Fatalf("Terminate on reaped process: %v", err)
	}
}

// The POSIX true/false utilities stand in for taskkill.

func TestIndirect_TerminateKillerFailure(t *testing.T) {
	s := Indirect{Killer: "false"}
	err := s.Terminate(context.Background(), Target{Executable: "node.exe"}, false, time.Second)
	if err == nil {
		t.Fatal("expected error when the killer exits non-zero")
	}
}

func TestIndirect_TerminateKillerSuccess(t *testing.T) {
	s := Indirect{Killer: "true"}
	if err := s.Terminate(context.Background(), Target{Executable: "node.exe"}, true, time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

// fakeKiller writes a taskkill stand-in that records each call's arguments.
// Requests without /F exit with gracefulStatus and leave pid alone; /F
// requests SIGKILL pid.
func fakeKiller(t *testing.T, pid, gracefulStatus int) (string, func() []string) {
	t.Helper()
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls")
	script := fmt.Sprintf(`#!/bin/sh
echo "$*" >> %q
case " $* " in
*" /F "*) kill -9 %d; exit 0 ;;
esac
exit %d
`, calls, pid, gracefulStatus)
	killer := filepath.Join(dir, "taskkill")
	if err := os.WriteFile(killer, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return killer, func() []string {
		data, err := os.ReadFile(calls)
		if err != nil {
			return nil
		}
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}
}

func TestIndirect_TerminateEscalates(t *testing.T) {
	tests := []struct {
		name           string
		gracefulStatus int
		grace          time.Duration
		minElapsed     time.Duration
	}{
		// taskkill without /F fails for console processes.
		{"graceful refused", 1, 5 * time.Second, 0},
		{"graceful ignored", 0, 200 * time.Millisecond, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, done := startSleeper(t, "exec sleep 30")
			killer, calls := fakeKiller(t, cmd.Process.Pid, tt.gracefulStatus)
			target := Target{Process: cmd.Process, Executable: `C:\t\SubstratumNode.exe`, Done: done}

			start := time.Now()
			if err := (Indirect{Killer: killer}).Terminate(context.Background(), target, true, tt.grace); err != nil {
				t.Fatalf("Terminate: %v", err)
			}
			elapsed := time.Since(start)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("node still running after Terminate returned")
			}
			if elapsed < tt.minElapsed {
				t.Errorf("escalated after %v, want at least %v", elapsed, tt.minElapsed)
			}
			if elapsed >= 3*time.Second {
				t.Errorf("Terminate took %v", elapsed)
			}

			want := []string{"/IM SubstratumNode.exe", "/IM SubstratumNode.exe /F"}
			if got := calls(); !reflect.DeepEqual(got, want) {
				t.Errorf("killer calls = %q, want %q", got, want)
			}
		})
	}
}

func TestIndirect_TerminateKillsShellLast(t *testing.T) {
	// The killer succeeds but stops nothing, leaving only the shell kill.
	cmd, done := startSleeper(t, "exec sleep 30")
	target := Target{Process: cmd.Process, Executable: "node.exe", Done: done}

	if err := (Indirect{Killer: "true"}).Terminate(context.Background(), target, false, 100*time.Millisecond); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shell not killed after the forced request went unanswered")
	}
}
