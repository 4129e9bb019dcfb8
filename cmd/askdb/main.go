// Package main provides the CLI for askdb.
package main

import (
	"os"

	"github.com/leapstack-labs/askdb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
