package main

import (
	"os"

	"github.com/quotepulse/quotepulse/cmd"
)

// This is the launcher for all quotepulse services.

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
