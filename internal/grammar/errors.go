package grammar

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned when no rule handles the command word.
var ErrUnknownCommand = errors.New("UNKNOWN COMMAND")

// SyntaxError is returned when the command word is known but the command does
// not match its grammar end to end.
type SyntaxError struct {
	Prefix   string
	Expected string // Example of the well-formed command.
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("INVALID FORMAT - EXPECTED: %s", e.Expected)
}
