package main

import (
	"os"

	"github.com/UnderhillForge/PiTrader/cmd/pitrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
