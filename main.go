package main

import (
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/temirov/ss5upgrade/cmd/cli"
	"github.com/temirov/ss5upgrade/internal/ui"
)

const (
	failureExitCodeConstant = 1
)

// main executes the ss5upgrade command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		reportFailure(os.Stderr, !color.NoColor, executionError)
		os.Exit(failureExitCodeConstant)
	}
}

func reportFailure(writer io.Writer, colorEnabled bool, failure error) {
	ui.NewConsole(writer, colorEnabled).Failure(failure.Error())
}
