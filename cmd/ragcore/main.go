// Package main provides the entry point for the ragcore CLI.
package main

import (
	"os"

	"github.com/calyptra/ragcore/cmd/ragcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
