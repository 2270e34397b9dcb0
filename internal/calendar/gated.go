package calendar

import (
	"context"
	"time"

	"github.com/showgrid/agendacal/internal/errs"
)

// Permissions reports whether the calendar permission pair is held.
// A partial grant (read without write, or the reverse) reports false.
type Permissions interface {
	Granted() bool
}

// Gated wraps a Store with a permission check on every call.
//
// Every operation returns errs.ErrPermissionDenied without touching
// the backend unless both read and write grants are held. The engine
// composes all backends through Gated so a revoked permission can
// never be misread as "event absent".
type Gated struct {
	perms Permissions
	inner Store
}

// NewGated wraps inner with the given permission check.
func NewGated(perms Permissions, inner Store) *Gated {
	return &Gated{perms: perms, inner: inner}
}

func (g *Gated) Calendars(ctx context.Context) ([]Info, error) {
	if !g.perms.Granted() {
		return nil, errs.ErrPermissionDenied
	}
	return g.inner.Calendars(ctx)
}

func (g *Gated) CreateEvent(ctx context.Context, calendarID string, data EventData) (string, error) {
	if !g.perms.Granted() {
		return "", errs.ErrPermissionDenied
	}
	return g.inner.CreateEvent(ctx, calendarID, data)
}

func (g *Gated) UpdateEvent(ctx context.Context, eventID string, data EventData) error {
	if !g.perms.Granted() {
		return errs.ErrPermissionDenied
	}
	return g.inner.UpdateEvent(ctx, eventID, data)
}

func (g *Gated) DeleteEvent(ctx context.Context, eventID string) error {
	if !g.perms.Granted() {
		return errs.ErrPermissionDenied
	}
	return g.inner.DeleteEvent(ctx, eventID)
}

func (g *Gated) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	if !g.perms.Granted() {
		return nil, errs.ErrPermissionDenied
	}
	return g.inner.GetEvent(ctx, eventID)
}

func (g *Gated) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	if !g.perms.Granted() {
		return nil, errs.ErrPermissionDenied
	}
	return g.inner.EventsBetween(ctx, from, to)
}

func (g *Gated) EventStart(ctx context.Context, eventID string) (*time.Time, error) {
	if !g.perms.Granted() {
		return nil, errs.ErrPermissionDenied
	}
	return g.inner.EventStart(ctx, eventID)
}

var _ Store = (*Gated)(nil)
