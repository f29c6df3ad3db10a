package main

import (
	"os"

	"github.com/joeydtaylor/steeze-services/cmd/servicesd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
