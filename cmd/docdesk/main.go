// Package main provides the docdesk command.
package main

import (
	"os"

	"github.com/leapstack-labs/docdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
