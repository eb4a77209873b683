// Package cli provides shared formatting helpers for the netverify CLI.
package cli

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (per no-color.org) or stdout
// is not a terminal.
var colorEnabled = os.Getenv("NO_COLOR") == "" && IsTerminal(os.Stdout)

// SetColor forces color on or off, e.g. for --no-color or tests.
func SetColor(on bool) {
	colorEnabled = on
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of stdout, or 0 when it is not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green. Returns s unchanged when color is off.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow. Returns s unchanged when color is off.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red. Returns s unchanged when color is off.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold. Returns s unchanged when color is off.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim. Returns s unchanged when color is off.
func Dim(s string) string { return paint("\033[2m", s) }

// Status colors a status word: green for success words, red for failures,
// yellow for loops, warnings and anything unknown.
func Status(s string) string {
	switch strings.ToUpper(s) {
	case "OK", "REACHED", "UP", "PASS", "REACHABLE":
		return Green(s)
	case "FAIL", "FAILED", "ERROR", "DOWN", "UNREACHABLE":
		return Red(s)
	case "":
		return s
	}
	return Yellow(s)
}

// DotPad pads name with dots to the given width.
// Example: DotPad("core-sw1", 30) = "core-sw1 ....................."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
