// Package fakenodetest writes a shell script that imitates the node binary's
// command-line surface, for tests that need a real child process. Like
// net/http/httptest, it is meant to be imported only from _test.go files.
package fakenodetest

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// Name is the executable name the script is installed under.
const Name = "SubstratumNode"

// ReadyLine is appended to the node log once the fake node is up.
const ReadyLine = "INFO: SubstratumNode ready"

// ArgsFile is written to the data directory with the received arguments,
// one per line.
const ArgsFile = "args.txt"

// Script flags understood on top of the real node's flags:
//
//	--exit-code N     exit with status N instead of running
//	--ready-after S   sleep S seconds before logging ReadyLine
//	--ignore-term     ignore SIGTERM
//	--no-log          never write the log file
const script = `#!/bin/sh
datadir=""
mode=daemon
code=""
delay=""
nolog=""
args_file=$(mktemp)
printf '%s\n' "$@" > "$args_file"
while [ $# -gt 0 ]; do
  case "$1" in
    --data-directory) datadir="$2"; shift 2 ;;
    --dump-config) mode=dump; shift ;;
    --generate-wallet) mode=generate; shift ;;
    --recover-wallet) mode=recover; shift ;;
    --exit-code) code="$2"; shift 2 ;;
    --ready-after) delay="$2"; shift 2 ;;
    --ignore-term) trap '' TERM; shift ;;
    --no-log) nolog=1; shift ;;
    *) shift ;;
  esac
done
mv "$args_file" "$datadir/args.txt"
case "$mode" in
  dump) echo "dns-servers: 8.8.8.8"; echo "dump warning" >&2; exit 0 ;;
  generate) echo "wallet generated"; exit 0 ;;
  recover) echo "wallet recovered"; echo "ERROR: bad mnemonic" >&2; exit 1 ;;
esac
if [ -n "$code" ]; then
  echo "ERROR: exiting with $code" >&2
  exit "$code"
fi
touch "$datadir/node-data.db"
echo "node starting"
if [ -n "$delay" ]; then sleep "$delay"; fi
if [ -z "$nolog" ]; then echo "` + ReadyLine + `" >> "$datadir/SubstratumNode.log"; fi
exec sleep 30
`

// Install writes the script to <root>/target/debug/SubstratumNode and
// returns its path. Tests are skipped where /bin/sh is unavailable.
func Install(tb testing.TB, root string) string {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("fake node requires a POSIX shell")
	}

	dir := filepath.Join(root, "target", "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("create fake node dir: %v", err)
	}
	path := filepath.Join(dir, Name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		tb.Fatalf("write fake node: %v", err)
	}
	return path
}

// InvocationPath returns a path that resolves to the installed script, the
// way a test binary under target/debug/deps would.
func InvocationPath(root string) string {
	return filepath.Join(root, "target", "debug", "deps", "integration-0123abcd")
}

// Args reads the arguments the fake node last received in dataDir.
func Args(tb testing.TB, dataDir string) []string {
	tb.Helper()
	b, err := os.ReadFile(filepath.Join(dataDir, ArgsFile))
	if err != nil {
		tb.Fatalf("read fake node args: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}
