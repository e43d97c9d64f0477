package main

import (
	"fmt"

	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
)

// Version is the server's reported release string.
const Version = "0.1.0"

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("verda-sxtelo server %s\n", Version)
		return true
	case "limits":
		cliLimits()
		return true
	default:
		return false
	}
}

// cliLimits prints the registry's fixed operational limits, for operators
// sanity-checking a deployment without starting a server.
func cliLimits() {
	fmt.Printf("max conversations: %d\n", registry.MaxConversations)
}
