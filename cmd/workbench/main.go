// Package main provides the workbench SQL console.
package main

import (
	"os"

	"github.com/leapstack-labs/workbench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
