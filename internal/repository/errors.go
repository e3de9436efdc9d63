package repository

import "errors"

// ErrNotFound is returned when no reading matches an id or a channel filter.
var ErrNotFound = errors.New("reading not found")
