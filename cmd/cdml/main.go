// Package main is the entry point for the cdml CLI tool.
package main

import (
	"os"

	"github.com/cdmlang/cdml/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
