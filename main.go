package main

import (
	"os"

	"github.com/SevenCandid/Seven-Assistant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
