package main

import (
	"os"

	"github.com/colyze-dev/colyze/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
