// Package main is the entry point for the pharma-margin CLI.
package main

import (
	"os"

	"pharma-margin/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
