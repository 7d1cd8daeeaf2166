package main

import (
	"os"

	"github.com/prapanjan22-hub/garazzo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
