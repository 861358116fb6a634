package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// colorEnabled reports whether ANSI colors should be written to f. NO_COLOR
// and CLICOLOR=0 disable color, CLICOLOR_FORCE=1 forces it, and otherwise
// color is used only when f is a terminal.
func colorEnabled(f *os.File) bool {
	// https://no-color.org — any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// ShouldUseColor reports whether the event tables and status labels written
// to stdout get ANSI color.
func ShouldUseColor() bool {
	return colorEnabled(os.Stdout)
}
