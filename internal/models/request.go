package models

import "time"

// RequestStatus captures workflow states for event requests.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "PENDING"
	RequestStatusPreSchedule RequestStatus = "PRE_SCHEDULE"
	RequestStatusApproved    RequestStatus = "APPROVED"
	RequestStatusRejected    RequestStatus = "REJECTED"
	RequestStatusCancelled   RequestStatus = "CANCELLED"
)

// allowedTransitions lists the legal status moves. Anything absent here,
// including same-state moves, is rejected.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:     {RequestStatusPreSchedule, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusPreSchedule: {RequestStatusApproved, RequestStatusCancelled},
	RequestStatusApproved:    {RequestStatusCancelled},
}

// CanTransition reports whether moving between the two statuses is legal.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GateSource records which flag decided the approval routing.
type GateSource string

const (
	GateSourceSector  GateSource = "SECTOR"
	GateSourceProject GateSource = "PROJECT"
)

// Request stores an educational event request moving through approval.
type Request struct {
	ID              string        `db:"id" json:"id"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description,omitempty"`
	RequesterID     string        `db:"requester_id" json:"requester_id"`
	ProjectID       string        `db:"project_id" json:"project_id"`
	MunicipalityID  string        `db:"municipality_id" json:"municipality_id"`
	EventTypeID     string        `db:"event_type_id" json:"event_type_id"`
	StartsAt        time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time     `db:"ends_at" json:"ends_at"`
	Status          RequestStatus `db:"status" json:"status"`
	ApproverID      *string       `db:"approver_id" json:"approver_id,omitempty"`
	DecidedAt       *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`

	Presenters []Presenter `db:"-" json:"presenters,omitempty"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status      []RequestStatus
	ProjectID   string
	RequesterID string
	SectorID    string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}
