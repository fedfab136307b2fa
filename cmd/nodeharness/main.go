// Package main provides the nodeharness CLI entry point.
//
// nodeharness launches the node binary the way the integration tests do:
// it resolves the binary from the build output directory, removes the stale
// database, starts the node with the standard arguments and waits for a
// readiness line in its log.
package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/nodeharness
var version = "dev"

func main() {
	root := NewRootCmd()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
