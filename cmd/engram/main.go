// Command engram is the CLI entry point: serve starts the stdio MCP
// server, init bootstraps a vault, recovery manages Shamir kits, and
// device manages paired devices.
package main

import (
	"fmt"
	"os"

	"github.com/engramhq/engram/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
