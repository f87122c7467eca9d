package main

import (
	"os"

	"github.com/MasterOfBinary/bulkbench/cmd/bulkbench/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
