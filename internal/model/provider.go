package model

import "time"

// Provider represents a bookable resource such as a doctor or an
// examination room.  Every slot belongs to exactly one provider.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the provider.
//  Specialty – free-form specialty label (e.g. "cardiology").
//  CreatedAt – creation timestamp.
type Provider struct {
	ID        uint64    `json:"id"`         // providers.id
	Name      string    `json:"name"`       // providers.name
	Specialty string    `json:"specialty"`  // providers.specialty
	CreatedAt time.Time `json:"created_at"` // providers.created_at
}
