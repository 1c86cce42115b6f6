package main

import (
	"os"

	"github.com/wonny/quoteboard/cmd/quoteboard/commands"
)

// main is the entry point for the quoteboard CLI: go run ./cmd/quoteboard [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
