package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// Exit codes. Every failure stage gets its own.
const (
	exitUsage         = -1
	exitOpenFailed    = -2
	exitBootSector    = -3
	exitTable         = -4
	exitRootDirectory = -5
	exitNotFound      = -6
	exitChainRead     = -7
	exitOther         = -8
	exitIsDirectory   = -9
)

func main() {
	app := newApp(afero.NewOsFs(), os.Stdout, os.Stderr)

	err := app.Run(os.Args)
	if err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints `err` and returns the exit code the process should
// terminate with. Errors that didn't come from a command (e.g. bad flags) are
// usage errors.
func reportError(w io.Writer, err error) int {
	fmt.Fprintf(w, "bootfat: %s\n", err.Error())

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}
	return exitUsage
}
