package calendar

import (
	"context"
	"time"
)

// Store performs create/update/delete/read of native calendar events
// and enumerates device calendars.
//
// Implementations confine their side effects to the backing calendar
// store; no other component is permitted to touch it directly. All
// methods are safe for concurrent use.
//
// Absence is reported with errs.ErrEventNotFound (except DeleteEvent
// and EventStart, see below). Permission gating is layered on top via
// Gated rather than implemented per backend.
type Store interface {
	// Calendars enumerates the calendars available as sync targets.
	Calendars(ctx context.Context) ([]Info, error)

	// CreateEvent creates an event in the given calendar and returns
	// the backend-assigned native event id.
	CreateEvent(ctx context.Context, calendarID string, data EventData) (string, error)

	// UpdateEvent rewrites an existing event in place.
	// Returns errs.ErrEventNotFound if the id no longer resolves;
	// callers must have matched first.
	UpdateEvent(ctx context.Context, eventID string, data EventData) error

	// DeleteEvent removes an event. Deleting an already-absent event
	// is success, not an error: delete is idempotent.
	DeleteEvent(ctx context.Context, eventID string) error

	// GetEvent reads a single event by native id.
	GetEvent(ctx context.Context, eventID string) (*Event, error)

	// EventsBetween lists events whose start time falls in [from, to],
	// inclusive. Used for content-based fallback matching.
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)

	// EventStart returns the start time of an event, or nil rather
	// than an error when the event is absent. Read-only helper for
	// deep-linking into the calendar at the right date.
	EventStart(ctx context.Context, eventID string) (*time.Time, error)
}
