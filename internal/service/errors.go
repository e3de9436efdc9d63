package service

import "errors"

// ErrValidation marks caller errors: bad channel keys or indexes, unparsable dates, empty submissions.
var ErrValidation = errors.New("validation failed")

// ValidationError wraps the specific cause and matches both it and ErrValidation under errors.Is.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}
