package main

import (
	"os"

	"github.com/opensemanticworld/oswgen/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
