package main

import (
	"os"

	"github.com/compozy/arag/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
