// Package main is the entry point for the docfind CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docfind/cmd/docfind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
