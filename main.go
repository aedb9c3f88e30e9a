package main

import (
	"os"

	"github.com/bryan-buckman/readdeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
