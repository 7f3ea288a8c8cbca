package main

import (
	"os"

	"github.com/wonny/radar/backend/cmd/radar/commands"
)

// main is the entry point for the radar CLI
// ⭐ single CLI entry point: go run ./cmd/radar [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
