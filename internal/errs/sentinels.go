// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the calendar/sync layers.
var (
	// ErrPermissionDenied indicates the calendar permission pair (read+write)
	// is not held. It must never be treated as "event absent": callers leave
	// mapping state untouched when they see it.
	ErrPermissionDenied = errors.New("calendar permission denied")

	// ErrEventNotFound indicates a native event id no longer resolves.
	// Recoverable: callers heal by relinking or recreating.
	ErrEventNotFound = errors.New("calendar event not found")

	// ErrNoCalendar indicates no target calendar could be determined.
	ErrNoCalendar = errors.New("no target calendar")

	// ErrMappingNotFound indicates no sync mapping exists for an agenda item.
	ErrMappingNotFound = errors.New("sync mapping not found")
)
