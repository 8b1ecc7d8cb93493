// Package service contains the reservation engine: the transactional
// protocol that claims slots, drives reservations through their
// lifecycle and reclaims slots whose reservation was never finalised.
package service

import "errors"

// The service reports expected failures through these sentinels,
// wrapped with a human-readable cause (e.g. "slot unavailable").
// Handlers map them to HTTP status codes with errors.Is; anything else
// coming out of the service is an internal error.

// ErrNotFound indicates the referenced slot or reservation is absent.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation lost to another claimant: the
// slot is already taken, or the store reported a serialization failure
// and the caller may retry the whole operation.
var ErrConflict = errors.New("conflict")

// ErrInvalidState indicates the operation is not legal for the current
// state, such as claiming a slot scheduled in the past or cancelling an
// already-cancelled reservation.
var ErrInvalidState = errors.New("invalid state")
