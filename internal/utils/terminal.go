package utils

import (
	"os"

	"golang.org/x/term"
)

// SetupTerminal puts stdin into raw mode so keystrokes reach the container
// unbuffered. Returns the previous state, or nil when stdin is not a terminal.
func SetupTerminal() (*term.State, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return oldState, nil
}

// RestoreTerminal restores the terminal to its original state.
func RestoreTerminal(oldState *term.State) {
	if oldState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), oldState)
	}
}

// GetTerminalSize returns the width and height of stdout, falling back to 80x24.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}
