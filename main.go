// Package main is the entry point for the hyperbr border router agent.
package main

import (
	"fmt"
	"os"

	"geomesh.io/hyperbr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
