package repository

import "errors"

// ErrNotFound is returned when a row does not exist or is not in the state the
// operation requires.
var ErrNotFound = errors.New("not found")
