package main

import (
	"os"

	"github.com/skyops/aerodrome/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
