// Package main is the entry point for the voicebridge CLI.
//
// Usage:
//
//	voicebridge [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the telephony relay server
//	documents  - Manage the knowledge base
//	calendar   - Manage calendar accounts
//	call       - Place outbound calls
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/solutionstwo/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
