package main

import (
	"os"

	"github.com/outlay-dev/outlay/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
