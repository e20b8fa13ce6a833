package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"plexadmin/internal/cli"
)

func main() {
	cmd := newRootCommand()
	cmd.SetArgs(cli.ExpandArgs(os.Args[1:], argSpec))
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
