package api

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks apply inputs that do not fit the served model.
var ErrInvalidInput = errors.New("api: invalid model input")

// InputError reports a rejected apply input. Index is -1 when the problem
// is the number of inputs rather than one of them.
type InputError struct {
	Index int
	Msg   string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return e.Msg
	}
	return fmt.Sprintf("inputs[%d]: %s", e.Index, e.Msg)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func inputError(index int, format string, args ...any) error {
	return &InputError{Index: index, Msg: fmt.Sprintf(format, args...)}
}
