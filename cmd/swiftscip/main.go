package main

import (
	"os"

	"github.com/abramin/swiftscip/cmd/swiftscip/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
