// Command microbench calibrates the available clocks and measures the built-in workloads.
//
// Usage:
//
//	go run ./cmd/microbench calibrate --clock=posix
//	go run ./cmd/microbench run noop sha256-64b --duration=500ms
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
