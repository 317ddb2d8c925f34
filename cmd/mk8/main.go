package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lago-morph/mk8/internal/cli"
	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/logging"
)

// main is the entry point for the mk8 CLI binary.
func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		var mk8Err *errdef.Error
		if errors.As(err, &mk8Err) {
			fmt.Fprintln(os.Stderr, mk8Err.Format())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(errdef.ExitCode(err))
	}
}
