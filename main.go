// Package main is the entry point for casehub.
package main

import (
	"fmt"
	"os"

	"casehub/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
