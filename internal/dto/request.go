package dto

import (
	"time"

	"github.com/escolab/agenda-api/internal/models"
)

// CreateRequestRequest payload for submitting an event request.
type CreateRequestRequest struct {
	Title          string    `json:"title" validate:"required"`
	Description    string    `json:"description"`
	ProjectID      string    `json:"project_id" validate:"required"`
	MunicipalityID string    `json:"municipality_id" validate:"required"`
	EventTypeID    string    `json:"event_type_id" validate:"required"`
	StartsAt       time.Time `json:"starts_at" validate:"required"`
	EndsAt         time.Time `json:"ends_at" validate:"required"`
	PresenterIDs   []string  `json:"presenter_ids" validate:"required,min=1,dive,required"`
}

// Decision values accepted by the decide endpoint.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// DecideRequestRequest captures the approver decision. Rejections must
// carry a justification.
type DecideRequestRequest struct {
	Decision      string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Justification string `json:"justification"`
}

// CancelRequestRequest carries an optional cancellation reason.
type CancelRequestRequest struct {
	Reason string `json:"reason"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Status    []models.RequestStatus
	ProjectID string
	Page      int
	PageSize  int
}
