// Package main is the entry point for the duckstack binary.
package main

import (
	"os"

	cli "duckstack/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
