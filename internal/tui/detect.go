package tui

import (
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for the CLI.
type Mode int

const (
	// ModeNonInteractive is used for CI/CD pipelines, scripts, and piped input.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// DetectMode determines whether the CLI should run interactively.
//
// Returns ModeNonInteractive if:
//   - stdin or stdout is not a terminal (piped input, CI/CD)
//   - CALLBELL_NON_INTERACTIVE=1 is set
//   - CI=true is set (common CI/CD convention)
//   - NO_COLOR is set (accessibility/automation indicator)
//
// Returns ModeInteractive otherwise.
func DetectMode() Mode {
	if os.Getenv("CALLBELL_NON_INTERACTIVE") == "1" {
		return ModeNonInteractive
	}
	if os.Getenv("CI") != "" {
		return ModeNonInteractive
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModeNonInteractive
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ModeNonInteractive
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ModeNonInteractive
	}

	return ModeInteractive
}

// IsInteractive returns true if running in interactive mode.
func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}
