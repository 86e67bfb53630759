package main

import (
	"fmt"
	"os"

	"github.com/tyemirov/xschr/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the xschr command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}
	if !cli.Reported(executionError) {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	}
	os.Exit(cli.ExitCode(executionError))
}
