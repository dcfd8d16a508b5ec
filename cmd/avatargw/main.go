package main

import (
	"os"

	"github.com/ABHI-11949/avatar/cmd/avatargw/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
