package main

import (
	"os"

	"github.com/go-delve/tinydbg/cmd/tinydbg/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
