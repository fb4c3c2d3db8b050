package main

import (
	"fmt"
	"os"

	"mc3e/cmd/mc3e/commands"
)

// Заполняются при сборке через -ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
