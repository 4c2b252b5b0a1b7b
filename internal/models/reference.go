package models

// Sector groups projects under one approval policy.
type Sector struct {
	ID                    string `db:"id" json:"id"`
	Name                  string `db:"name" json:"name"`
	RequiresGatedApproval bool   `db:"requires_gated_approval" json:"requires_gated_approval"`
}

// Project is the programme an event request belongs to. The project-level
// approval flag is the legacy fallback used when no sector is assigned.
type Project struct {
	ID                    string  `db:"id" json:"id"`
	Name                  string  `db:"name" json:"name"`
	SectorID              *string `db:"sector_id" json:"sector_id,omitempty"`
	RequiresGatedApproval bool    `db:"requires_gated_approval" json:"requires_gated_approval"`
	Active                bool    `db:"active" json:"active"`
}

// EventType classifies requests; online types get a conferencing link.
type EventType struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsOnline bool   `db:"is_online" json:"is_online"`
}

// Presenter delivers events and carries the address invited by the
// external calendar.
type Presenter struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Active   bool   `db:"active" json:"active"`
}

// Municipality locates an event.
type Municipality struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	UF   string `db:"uf" json:"uf"`
}
