package models

import "time"

// SyncStatus tracks the mirroring state of a calendar event.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSynced  SyncStatus = "SYNCED"
	SyncStatusError   SyncStatus = "ERROR"
)

// CalendarEvent mirrors one request into the external calendar. Exactly one
// row exists per request; external identifiers are only present after a
// successful provider call.
type CalendarEvent struct {
	ID           string     `db:"id" json:"id"`
	RequestID    string     `db:"request_id" json:"request_id"`
	ExternalID   *string    `db:"external_id" json:"external_id,omitempty"`
	ExternalLink *string    `db:"external_link" json:"external_link,omitempty"`
	SyncStatus   SyncStatus `db:"sync_status" json:"sync_status"`
	LastError    *string    `db:"last_error" json:"last_error,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CalendarEventFilter constrains listing queries.
type CalendarEventFilter struct {
	SyncStatus []SyncStatus
	RequestID  string
	Limit      int
	Offset     int
}
