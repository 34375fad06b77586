package repository

import "errors"

var (
	// ErrNotFound is returned when a client is not found by ID
	ErrNotFound = errors.New("client not found")

	// ErrInvalidID is returned when an ID format is invalid
	ErrInvalidID = errors.New("invalid client ID format")
)
