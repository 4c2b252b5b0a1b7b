package dto

import "github.com/escolab/agenda-api/internal/models"

// CalendarEventQuery mirrors supported listing filters for sync state.
type CalendarEventQuery struct {
	SyncStatus []models.SyncStatus
	RequestID  string
	Page       int
	PageSize   int
}
