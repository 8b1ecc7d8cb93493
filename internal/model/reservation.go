package model

import "time"

// Status enumerates the lifecycle states of a reservation.  The set is
// closed; code must never write a status outside these constants, and
// every transition has to pass CanTransition before being persisted.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists every legal status edge.  A PENDING reservation is
// confirmed synchronously, failed by the expiry sweeper on timeout, or
// cancelled by the requester.  A CONFIRMED reservation can only be
// cancelled.  Cancelling a FAILED reservation is allowed as an
// acknowledgement and does not touch the slot (the sweeper already
// released it).  No edge re-enters PENDING.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusFailed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusFailed:    {StatusCancelled},
	StatusCancelled: {},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// HoldsSlot reports whether a reservation in this status keeps its slot
// unavailable.  A slot has at most one reservation for which this is
// true at any instant; that is the core consistency guarantee enforced
// by the row-locking protocol in the service layer.
func (s Status) HoldsSlot() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether moving a reservation from one status to
// another is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reservation records a requester's claim on a single slot.  Rows are
// never deleted; terminal reservations are retained for audit and the
// stats endpoint.
//
// Fields:
//  ID               – primary key identifier.
//  SlotID           – slot being claimed.
//  RequesterName    – name of the person requesting the slot.
//  RequesterContact – email or other contact address.
//  RequesterPhone   – optional phone number.
//  Status           – lifecycle state (see Status).
//  FailureReason    – populated when the sweeper fails the reservation.
//  CreatedAt        – creation timestamp.
//  ConfirmedAt      – set when the reservation is confirmed.
//  FailedAt         – set when the reservation is failed.
type Reservation struct {
	ID               uint64     `json:"id"`                        // reservations.id
	SlotID           uint64     `json:"slot_id"`                   // reservations.slot_id
	RequesterName    string     `json:"requester_name"`            // reservations.requester_name
	RequesterContact string     `json:"requester_contact"`         // reservations.requester_contact
	RequesterPhone   *string    `json:"requester_phone,omitempty"` // reservations.requester_phone (nullable)
	Status           Status     `json:"status"`                    // reservations.status
	FailureReason    *string    `json:"failure_reason,omitempty"`  // reservations.failure_reason (nullable)
	CreatedAt        time.Time  `json:"created_at"`                // reservations.created_at
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`    // reservations.confirmed_at (nullable)
	FailedAt         *time.Time `json:"failed_at,omitempty"`       // reservations.failed_at (nullable)
}
