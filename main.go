package main

import (
	"os"

	"github.com/bimmerbailey/driftprep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
