package main

import (
	"github.com/acfsync/acfsync/internal/cli"
	"github.com/acfsync/acfsync/internal/util"
)

func main() {
	// Handle panics gracefully
	defer func() {
		if r := recover(); r != nil {
			util.ExitWithCode(util.ExitError, "Fatal error: %v", r)
		}
	}()

	if err := cli.Execute(); err != nil {
		util.HandleError(err, "")
	}
}
