package storage

import "errors"

// Common client storage errors
var (
	// ErrReplicaNotFound indicates that no cached replica exists for the session
	ErrReplicaNotFound = errors.New("replica not found")

	// ErrNoLastSession indicates that the client has not joined any session yet
	ErrNoLastSession = errors.New("no last session")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
