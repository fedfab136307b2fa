// Package platform locates the node executable and decides how it is
// launched and terminated on the current operating system family.
package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPathResolution is returned when the invocation path does not contain
// the build-output marker directory. The harness cannot work around it.
var ErrPathResolution = errors.New("path resolution failed")

// ResolveBinary locates the node executable next to the running test
// binary. invocation is split on sep; the first segment equal to marker is
// followed by the build profile segment (for example "debug" or "release"),
// and the executable is expected directly inside that profile directory.
//
//	ResolveBinary("/src/node/target/debug/deps/it-1a2b", "/", "target", "SubstratumNode")
//	  => "/src/node/target/debug/SubstratumNode"
func ResolveBinary(invocation, sep, marker, name string) (string, error) {
	if sep == "" || marker == "" || name == "" {
		return "", fmt.Errorf("%w: separator, marker and binary name are required", ErrPathResolution)
	}

	segments := strings.Split(invocation, sep)
	for i, segment := range segments {
		if segment != marker {
			continue
		}
		if i+1 >= len(segments) || segments[i+1] == "" {
			return "", fmt.Errorf("%w: no build profile after %q in %q", ErrPathResolution, marker, invocation)
		}
		parts := append(append([]string(nil), segments[:i+2]...), name)
		return strings.Join(parts, sep), nil
	}

	return "", fmt.Errorf("%w: %q has no %q segment", ErrPathResolution, invocation, marker)
}
