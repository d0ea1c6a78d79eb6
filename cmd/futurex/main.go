package main

import (
	"os"

	"futurex/cmd/futurex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
