package main

import (
	"os"

	"unleash/cmd/unleash/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
