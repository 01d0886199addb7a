package cli

import (
	"fmt"
	"os"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
)

// PrintError prints an error to stderr with appropriate formatting.
// Structured errors use their user-facing What/Why/Fix form.
func PrintError(err error) {
	if e := tgerrors.AsError(err); e != nil {
		fmt.Fprintln(os.Stderr, e.UserMessage())
		if verbose {
			fmt.Fprintf(os.Stderr, "\nCode: %s\n", e.Code)
			if e.Cause != nil {
				fmt.Fprintf(os.Stderr, "Cause: %v\n", e.Cause)
			}
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if e := tgerrors.AsError(err); e != nil {
		return e.ExitCode()
	}
	return 1
}
