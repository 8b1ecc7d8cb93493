// Package queue defines message payloads exchanged over the message
// broker plus the publisher and the background consumer for them.
package queue

// ReservationConfirmedEvent is published after a reservation commits in
// CONFIRMED state.  It carries enough information for downstream
// consumers to log or notify without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	SlotID        uint64 `json:"slot_id"`
	ProviderID    uint64 `json:"provider_id"`
	ProviderName  string `json:"provider_name"`
	SlotDate      string `json:"slot_date"`
	StartTime     string `json:"start_time"`
	RequesterName string `json:"requester_name"`
	ConfirmedAt   string `json:"confirmed_at"`
}
