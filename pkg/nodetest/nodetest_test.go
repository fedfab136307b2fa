package nodetest

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-node-harness/internal/fakenodetest"
	"github.com/randomizedcoder/go-node-harness/internal/supervisor"
	"github.com/randomizedcoder/go-node-harness/pkg/command"
)

// recordingTB captures fatal failures and cleanups so tests can observe
// them. Fatalf ends the calling goroutine the way testing.T does.
type recordingTB struct {
	testing.TB

	mu       sync.Mutex
	fatal    string
	errs     []string
	cleanups []func()
}

func newRecordingTB(t *testing.T) *recordingTB {
	return &recordingTB{TB: t}
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Log(args ...any) {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.mu.Lock()
	r.fatal = fmt.Sprintf(format, args...)
	r.mu.Unlock()
	runtime.Goexit()
}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.mu.Lock()
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordingTB) Cleanup(fn func()) {
	r.mu.Lock()
	r.cleanups = append(r.cleanups, fn)
	r.mu.Unlock()
}

// run executes fn on its own goroutine and returns once it returns or fails.
func (r *recordingTB) run(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
}

// runCleanups runs registered cleanups last-in first-out.
func (r *recordingTB) runCleanups() {
	r.mu.Lock()
	fns := r.cleanups
	r.cleanups = nil
	r.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func (r *recordingTB) fatalMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// fastOptions points a harness at a freshly installed fake node.
func fastOptions(t *testing.T) (string, []Option) {
	t.Helper()
	root := t.TempDir()
	binary := fakenodetest.Install(t, root)
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	return dataDir, []Option{
		WithBinary(binary),
		WithDataDir(dataDir),
		WithStartDelay(50 * time.Millisecond),
		WithPollIntervals(20*time.Millisecond, 20*time.Millisecond),
	}
}

// ============================================================================
// Harness lifecycle
// ============================================================================

func TestHarness_StartWaitKill(t *testing.T) {
	_, opts := fastOptions(t)
	h := New(t, opts...)

	node := h.Start(command.New().Pair("--clandestine-port", "1234"))
	node.WaitForLog(`SubstratumNode\s+ready`, 5*time.Second)
	AssertLogMatches(t, node.LogContents(), `INFO: .* ready`)
	require.Equal(t, supervisor.StateReady, node.Unwrap().State())

	code := node.Kill()
	require.Nil(t, code, "a killed node has no exit code")
	require.True(t, node.Unwrap().Exited())
}

func TestHarness_ResolvesFromInvocationPath(t *testing.T) {
	root := t.TempDir()
	fakenodetest.Install(t, root)

	h := New(t,
		WithInvocationPath(fakenodetest.InvocationPath(root)),
		WithDataDir(t.TempDir()),
		WithStartDelay(0),
	)
	require.Equal(t, filepath.Join(root, "target", "debug", fakenodetest.Name), h.Supervisor().Binary())

	node := h.Start(command.New().Pair("--exit-code", "7"))
	code := node.WaitForExit(5 * time.Second)
	require.NotNil(t, code)
	require.Equal(t, 7, *code)
}

func TestHarness_CleanupKillsAfterFatal(t *testing.T) {
	_, opts := fastOptions(t)
	rec := newRecordingTB(t)

	var node *Node
	rec.run(func() {
		h := New(rec, opts...)
		node = h.Start(command.New().Opt("--no-log"))
		node.WaitForLog("never written", 200*time.Millisecond)
		t.Error("WaitForLog should not return after a timeout")
	})

	require.Contains(t, rec.fatalMessage(), "waited for more than 200ms")
	require.Contains(t, rec.fatalMessage(), "node stdout:\n  node starting")
	require.NotNil(t, node)
	require.False(t, node.Unwrap().Exited(), "node must survive until cleanup")

	rec.runCleanups()
	require.True(t, node.Unwrap().Exited(), "cleanup must kill the node")
	require.Empty(t, rec.errs)
}

func TestHarness_CleanupKillsAfterPanic(t *testing.T) {
	_, opts := fastOptions(t)
	rec := newRecordingTB(t)

	var node *Node
	rec.run(func() {
		defer func() { _ = recover() }()
		h := New(rec, opts...)
		node = h.Start(nil)
		panic("test body failed")
	})

	require.NotNil(t, node)
	rec.runCleanups()
	require.True(t, node.Unwrap().Exited())
}

func TestNode_WaitForExitTimeoutIsFatal(t *testing.T) {
	_, opts := fastOptions(t)
	rec := newRecordingTB(t)

	rec.run(func() {
		h := New(rec, opts...)
		node := h.Start(nil)
		node.WaitForExit(150 * time.Millisecond)
	})
	defer rec.runCleanups()

	require.Contains(t, rec.fatalMessage(), "waited fruitlessly for node termination for 150ms")
}

func TestNode_StopAndKillExited(t *testing.T) {
	_, opts := fastOptions(t)
	h := New(t, opts...)

	node := h.Start(nil)
	require.Nil(t, node.Stop(time.Second))

	// Killing an exited node returns its code without failing
	require.Nil(t, node.Kill())
}

// ============================================================================
// Construction failures
// ============================================================================

func TestNew_Failures(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{
			name: "no marker in invocation path",
			opts: []Option{WithInvocationPath("/usr/local/bin/tests")},
			want: "path resolution failed",
		},
		{
			name: "invalid poll interval",
			opts: []Option{WithBinary("/opt/node"), WithPollIntervals(0, time.Second)},
			want: "log_poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecordingTB(t)
			rec.run(func() { New(rec, tt.opts...) })
			require.Contains(t, rec.fatalMessage(), tt.want)
		})
	}
}

func TestHarness_StartFailureIsFatal(t *testing.T) {
	rec := newRecordingTB(t)
	rec.run(func() {
		h := New(rec, WithBinary(filepath.Join(t.TempDir(), "absent")), WithDataDir(t.TempDir()))
		h.Start(nil)
	})
	require.Contains(t, rec.fatalMessage(), "node startup failed")
}

// ============================================================================
// Run-to-completion modes and database cleanup
// ============================================================================

func TestHarness_RunModes(t *testing.T) {
	_, opts := fastOptions(t)
	h := New(t, opts...)

	out := h.DumpConfig()
	require.True(t, strings.HasPrefix(out, "stdout:\ndns-servers: 8.8.8.8\n"))
	AssertEndsWith(t, out, "stderr:\ndump warning\n")

	require.Contains(t, h.GenerateWallet(command.New().Pair("--wallet-password", "secret")), "wallet generated")
	require.Contains(t, h.RecoverWallet(nil), "ERROR: bad mnemonic")
}

func TestHarness_RemoveDatabase(t *testing.T) {
	_, opts := fastOptions(t)
	h := New(t, opts...)

	require.NoError(t, os.WriteFile(h.DatabasePath(), []byte("x"), 0o644))
	h.RemoveDatabase()
	h.RemoveDatabase()
	require.NoFileExists(t, h.DatabasePath())
}

func TestHarness_RemoveDatabaseFailureIsFatal(t *testing.T) {
	dataDir, opts := fastOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "node-data.db", "busy"), 0o755))
	rec := newRecordingTB(t)

	rec.run(func() {
		h := New(rec, opts...)
		h.RemoveDatabase()
	})
	require.Contains(t, rec.fatalMessage(), "couldn't remove preexisting database")
}

// ============================================================================
// Assertions and ports
// ============================================================================

func TestAssertions(t *testing.T) {
	rec := newRecordingTB(t)
	rec.run(func() {
		AssertLogMatches(rec, "listening on 80", `on \d+`)
		AssertEndsWith(rec, "abc", "bc")
	})
	require.Empty(t, rec.fatalMessage())

	rec.run(func() { AssertLogMatches(rec, "booting", "ready") })
	require.Equal(t, "'booting' was not matched by 'ready'", rec.fatalMessage())

	rec.run(func() { AssertEndsWith(rec, "abc", "x") })
	require.Equal(t, "'abc' did not end with 'x'", rec.fatalMessage())

	rec.run(func() { AssertLogMatches(rec, "x", "(") })
	require.Contains(t, rec.fatalMessage(), "compile")
}

func TestFreePort(t *testing.T) {
	port := FreePort(t)
	require.Greater(t, port, 0)

	conn, err := net.ListenPacket("udp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err, "port should be free again after FreePort returns")
	require.NoError(t, conn.Close())
}
