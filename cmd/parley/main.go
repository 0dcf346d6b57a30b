package main

import (
	"fmt"
	"os"

	"github.com/parleyhq/parley/cmd/parley/commands"
	"github.com/parleyhq/parley/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.DefaultStyles.RenderError(err))
		os.Exit(1)
	}
}
