package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/careops/callbell/internal/cli"
	"github.com/careops/callbell/pkg/callbell"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(callbell.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(callbell.ExitCodeForError(err))
	}
}
