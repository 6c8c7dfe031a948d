package main

import (
	"os"

	"github.com/psantana5/lumirender/cmd/lumirender/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
