// Command tsclient obtains, inspects and verifies RFC 3161 time-stamp tokens.
package main

import (
	"fmt"
	"os"
)

// Build-time variables
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
