package storage

import "errors"

// Common storage errors
var (
	// ErrSessionNotFound indicates that session is missing, partial or corrupted
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID indicates that session id cannot be used as a storage key
	ErrInvalidSessionID = errors.New("invalid session id")
)
