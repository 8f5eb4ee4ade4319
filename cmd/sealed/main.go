package main

import (
	"os"

	"github.com/zoobzio/sealed/cmd/sealed/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
