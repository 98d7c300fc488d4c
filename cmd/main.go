package main

import (
	"context"
	"errors"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}
