package main

import (
	"os"

	"github.com/iliyamo/event-ticketing/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
