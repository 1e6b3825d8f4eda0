// Package main is the entry point for the camstreamd application.
package main

import (
	"os"

	"github.com/camstreamd/camstreamd/cmd/camstreamd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
