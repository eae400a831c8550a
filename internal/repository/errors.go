package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleStatus is returned when a conditional ride write finds the ride
	// no longer in the status the caller read.
	ErrStaleStatus = errors.New("ride status changed concurrently")
)
