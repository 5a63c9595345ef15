package app

import "errors"

// ErrBusy is returned when a handler is invoked while its previous run is
// still in progress.
var ErrBusy = errors.New("operation already in progress")

// ValidationError is a caller-side input problem detected before any request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }
