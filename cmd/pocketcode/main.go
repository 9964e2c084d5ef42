// Package main provides the entry point for the pocketcode client.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/opencode-ai/pocketcode/cmd/pocketcode/commands"
)

func main() {
	// A .env in the working directory can supply POCKETCODE_* overrides.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
