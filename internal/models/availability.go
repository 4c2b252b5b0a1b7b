package models

import "time"

// AvailabilityBlock marks a window in which a presenter declared themselves
// unavailable. Read-only input to conflict checking.
type AvailabilityBlock struct {
	ID          string    `db:"id" json:"id"`
	PresenterID string    `db:"presenter_id" json:"presenter_id"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
}

// ConflictSource distinguishes what an interval collided with.
type ConflictSource string

const (
	ConflictSourceBlock   ConflictSource = "AVAILABILITY_BLOCK"
	ConflictSourceRequest ConflictSource = "REQUEST"
)

// Conflict reports one overlap found for a presenter. Intervals are
// half-open, so back-to-back bookings never conflict.
type Conflict struct {
	PresenterID   string         `db:"presenter_id" json:"presenter_id"`
	PresenterName string         `db:"presenter_name" json:"presenter_name"`
	Source        ConflictSource `db:"source" json:"source"`
	SourceID      string         `db:"source_id" json:"source_id"`
	StartsAt      time.Time      `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time      `db:"ends_at" json:"ends_at"`
}
