package nodetest

import (
	"net"
	"regexp"
	"strings"
	"testing"
)

// AssertLogMatches fails the test unless s matches the regular expression.
func AssertLogMatches(tb testing.TB, s, pattern string) {
	tb.Helper()
	re, err := regexp.Compile(pattern)
	if err != nil {
		tb.Fatalf("nodetest: compile %q: %v", pattern, err)
	}
	if !re.MatchString(s) {
		tb.Fatalf("'%s' was not matched by '%s'", s, pattern)
	}
}

// AssertEndsWith fails the test unless s ends with suffix.
func AssertEndsWith(tb testing.TB, s, suffix string) {
	tb.Helper()
	if !strings.HasSuffix(s, suffix) {
		tb.Fatalf("'%s' did not end with '%s'", s, suffix)
	}
}

// FreePort returns a loopback port that was free a moment ago. The socket is
// released before returning, so another process may still claim it.
func FreePort(tb testing.TB) int {
	tb.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("nodetest: not enough free ports: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
