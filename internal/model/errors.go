package model

import "errors"

// Sentinel errors components can match with errors.Is.
var (
	ErrNotFound           = errors.New("mediaparser: not found")
	ErrInvalidState       = errors.New("mediaparser: invalid state transition")
	ErrInvariantViolation = errors.New("mediaparser: invariant violation")
	ErrValidation         = errors.New("mediaparser: validation failed")
)
