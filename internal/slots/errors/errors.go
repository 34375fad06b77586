package errors

import "errors"

var (
	ErrNotFound = errors.New("slot day not found")

	ErrInvalidID = errors.New("invalid slot day ID format")

	ErrAlreadyExists = errors.New("slot day already exists for date")

	ErrHasBookedEntries = errors.New("slot day has booked time entries")

	// ErrTimeUnavailable is returned by the lock when the entry is missing or
	// was already booked at the instant of the update.
	ErrTimeUnavailable = errors.New("time entry unavailable")
)
