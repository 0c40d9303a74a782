package inference

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks precondition failures detected before any model
// call: batch size over the model limit, prompt length out of range, or a
// vocabulary mismatch between model and tokenizer. Check with errors.Is.
var ErrInvalidInput = errors.New("invalid_input")

type invalidInputError struct {
	msg string
}

func (e invalidInputError) Error() string {
	return e.msg
}

func (e invalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func newInvalidInput(format string, args ...any) error {
	return invalidInputError{msg: fmt.Sprintf(format, args...)}
}
