// Package main is the entry point for the flowverify CLI.
package main

import (
	"os"

	"github.com/Dicklesworthstone/flowverify/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
