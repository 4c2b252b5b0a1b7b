package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Event is the provider-facing representation of a scheduled event.
type Event struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	Attendees   []string
	Conference  bool
}

// EventRef identifies an event stored by the provider.
type EventRef struct {
	ID   string
	Link string
}

// Provider abstracts the external calendar backend.
type Provider interface {
	CreateEvent(ctx context.Context, ev Event) (*EventRef, error)
	UpdateEvent(ctx context.Context, externalID string, ev Event) (*EventRef, error)
	DeleteEvent(ctx context.Context, externalID string) error
}

// Failure describes a provider call answered with a non-success status.
type Failure struct {
	Op         string
	StatusCode int
	Transient  bool
	Body       string
}

func (f *Failure) Error() string {
	if f.Body == "" {
		return fmt.Sprintf("calendar %s: status %d", f.Op, f.StatusCode)
	}
	return fmt.Sprintf("calendar %s: status %d: %s", f.Op, f.StatusCode, f.Body)
}

// IsTransient reports whether a failed call is worth retrying. Transport
// errors (timeouts, refused connections) are always retryable; HTTP
// failures follow the classification recorded on the Failure.
func IsTransient(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Transient
	}
	return err != nil
}
