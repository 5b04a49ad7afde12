// Package main is the entry point for the bridge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opengovern/resilient-bridge/v2/cmd/bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
