package gds

import "errors"

// PreconditionError is returned when a command is well formed but the session
// is not in a state that allows it. Msg is shown to the trainee verbatim.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// Precondition builds a PreconditionError.
func Precondition(msg string) error {
	return &PreconditionError{Msg: msg}
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
