// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// service and handlers to distinguish between failure scenarios without
// string matching. For example, ErrSlotNotFound maps to an HTTP 404,
// while ErrConflict signals that an operation cannot proceed because of
// dependent records (e.g. deleting a slot that still has an active
// reservation).
package repository

import "errors"

// ErrProviderNotFound indicates that a provider was not located in the DB.
var ErrProviderNotFound = errors.New("provider not found")

// ErrSlotNotFound indicates that a slot was not located in the DB.
var ErrSlotNotFound = errors.New("slot not found")

// ErrReservationNotFound indicates that a reservation was not located in the DB.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a provider that still
// has slots or a slot that is referenced by an active reservation.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
