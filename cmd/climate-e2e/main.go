package main

import (
	"os"

	"github.com/JustAProjectacc/climate-data-extraction-tool/cmd/climate-e2e/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
