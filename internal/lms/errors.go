package lms

import "errors"

var (
	// ErrNotFound means the referenced LMS entity no longer exists.
	// Callers treat it as a benign no-op.
	ErrNotFound = errors.New("lms: not found")

	// ErrLocked means the target is mid host-level deletion or an
	// attempt lock is held. Callers should come back later.
	ErrLocked = errors.New("lms: locked")
)
