package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrPersist = errors.New("persistence failed")
	ErrClosed  = errors.New("store closed")
)
