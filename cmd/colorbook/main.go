// Package main provides the entry point for the colorbook CLI.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/kidcolor/colorbook/cmd/colorbook/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
