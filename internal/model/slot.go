package model

import "time"

// Slot is a reservable time unit offered by a provider.  The available
// flag is the single source of truth for whether a new reservation may
// claim the slot: it is false exactly while one reservation in a
// slot-holding status (see Status.HoldsSlot) references the slot.
//
// Date and time are kept as separate columns to match the
// (provider_id, slot_date, start_time) uniqueness constraint; both are
// stored in UTC.
type Slot struct {
	ID          uint64    `json:"id"`           // slots.id
	ProviderID  uint64    `json:"provider_id"`  // slots.provider_id
	SlotDate    string    `json:"date"`         // slots.slot_date ("2006-01-02", UTC)
	StartTime   string    `json:"time"`         // slots.start_time ("15:04:05", UTC)
	DurationMin uint32    `json:"duration_min"` // slots.duration_min
	Available   bool      `json:"available"`    // slots.available
	CreatedAt   time.Time `json:"created_at"`   // slots.created_at
}

// StartsAt combines SlotDate and StartTime into a single UTC instant.
// It is used for the past-slot check when claiming a reservation.
func (s *Slot) StartsAt() (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s.SlotDate+" "+s.StartTime)
}
