package main

import (
	"os"

	"github.com/solatis/eventfilter/cmd/eventfilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
