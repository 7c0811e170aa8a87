// Package main provides the entry point for the corpuslens CLI.
package main

import (
	"os"

	"github.com/corpuslens/corpuslens/cmd/corpuslens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
