// Package syncer orchestrates a single agenda item's synchronization
// intent against the calendar store and the mapping table.
//
// The Manager is the unit of idempotent work: ensure-present, update,
// and remove all converge on the same terminal state no matter how
// often they are retried, and a native event lost underneath a synced
// item is healed in place without ever exposing an intermediate
// unsynced state to callers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
	"github.com/showgrid/agendacal/internal/mapstore"
	"github.com/showgrid/agendacal/internal/match"
)

// Action reports what EnsureSynced did.
type Action int

const (
	// ActionNone means the item was already correctly synced.
	ActionNone Action = iota
	// ActionCreated means a first-time native event was created.
	ActionCreated
	// ActionUpdated means the native event was rewritten for a
	// server-side content change.
	ActionUpdated
	// ActionRelinked means the mapping's native id was rewritten after
	// the event drifted identifiers; no calendar write was issued.
	ActionRelinked
	// ActionRecreated means the native event had been deleted
	// externally and was created again.
	ActionRecreated
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	case ActionRelinked:
		return "relinked"
	case ActionRecreated:
		return "recreated"
	default:
		return "unknown"
	}
}

// Manager synchronizes agenda items with the calendar store.
//
// All operations are serialized per agenda item id and safe to retry.
type Manager struct {
	store    calendar.Store
	matcher  *match.Matcher
	mappings *mapstore.Store
	logger   *log.Logger

	tolerance time.Duration
	locks     *keyedMutex

	calMu       sync.Mutex
	defaultCal  string
	resolvedCal string
}

// Config carries optional Manager settings.
type Config struct {
	// Tolerance is the content-match window. Zero means match.DefaultTolerance.
	Tolerance time.Duration

	// DefaultCalendarID is used when EnsureSynced is called with an
	// empty calendar id. When this is also empty, the first primary
	// device calendar is resolved lazily.
	DefaultCalendarID string

	// Logger for sync activity.
	Logger *log.Logger
}

// New creates a Manager.
//
// The mapping store must be open; the calendar store should already be
// permission-gated. If cfg.Logger is nil, a default logger writing to
// stderr is used.
func New(store calendar.Store, matcher *match.Matcher, mappings *mapstore.Store, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = match.DefaultTolerance
	}
	return &Manager{
		store:      store,
		matcher:    matcher,
		mappings:   mappings,
		logger:     logger,
		tolerance:  tolerance,
		locks:      newKeyedMutex(),
		defaultCal: cfg.DefaultCalendarID,
	}
}

// EnsureSynced brings one agenda item to the synced state.
//
// Terminal state on success: exactly one native event represents the
// item and the mapping records its id and content fingerprint. A
// permission denial aborts without mutating the mapping store.
func (m *Manager) EnsureSynced(ctx context.Context, intent calendar.Intent, calendarID string) (Action, error) {
	if err := intent.Validate(); err != nil {
		return ActionNone, fmt.Errorf("invalid intent: %w", err)
	}

	unlock := m.locks.Lock(intent.AgendaItemID)
	defer unlock()

	mapping, err := m.mappings.Get(ctx, intent.AgendaItemID)
	if err != nil {
		return ActionNone, err
	}

	if mapping == nil {
		return m.createFresh(ctx, intent, calendarID, ActionCreated)
	}

	fingerprint := intent.Fingerprint()
	if fingerprint == mapping.Fingerprint {
		return m.verifyLiveness(ctx, intent, mapping, calendarID)
	}

	// Server-side edit: rewrite the native event in place.
	err = m.store.UpdateEvent(ctx, mapping.NativeEventID, intent.EventData())
	if errors.Is(err, errs.ErrEventNotFound) {
		// The mapped id no longer resolves; treat as a lost event.
		return m.recreate(ctx, intent, calendarID)
	}
	if err != nil {
		return ActionNone, fmt.Errorf("failed to update event for %s: %w", intent.AgendaItemID, err)
	}

	if err := m.upsertMapping(ctx, intent, mapping.NativeEventID, fingerprint); err != nil {
		return ActionNone, err
	}
	m.logger.Printf("Updated %s (event %s)", intent.AgendaItemID, mapping.NativeEventID)
	return ActionUpdated, nil
}

// verifyLiveness handles the unchanged-fingerprint path: confirm the
// mapped event still exists, relink if it drifted ids, recreate if gone.
func (m *Manager) verifyLiveness(ctx context.Context, intent calendar.Intent, mapping *mapstore.Mapping, calendarID string) (Action, error) {
	result, err := m.matcher.Match(ctx, match.Criteria{
		OriginalEventID: mapping.NativeEventID,
		Title:           intent.Title,
		Start:           intent.Start,
		End:             intent.End,
		Tolerance:       m.tolerance,
	})
	if err != nil {
		return ActionNone, fmt.Errorf("liveness check failed for %s: %w", intent.AgendaItemID, err)
	}

	switch result.Outcome {
	case match.FoundByID:
		return ActionNone, nil

	case match.FoundByContent:
		// Identifier drift (e.g. after an OS account re-sync): rewrite
		// the mapping only, no calendar write.
		if err := m.upsertMapping(ctx, intent, result.EventID, mapping.Fingerprint); err != nil {
			return ActionNone, err
		}
		m.logger.Printf("Relinked %s: %s -> %s", intent.AgendaItemID, mapping.NativeEventID, result.EventID)
		return ActionRelinked, nil

	default:
		// Gone for real (user deleted it): new sync, not an error.
		return m.recreate(ctx, intent, calendarID)
	}
}

func (m *Manager) recreate(ctx context.Context, intent calendar.Intent, calendarID string) (Action, error) {
	return m.createFresh(ctx, intent, calendarID, ActionRecreated)
}

func (m *Manager) createFresh(ctx context.Context, intent calendar.Intent, calendarID string, action Action) (Action, error) {
	calID, err := m.targetCalendar(ctx, calendarID)
	if err != nil {
		return ActionNone, err
	}

	eventID, err := m.store.CreateEvent(ctx, calID, intent.EventData())
	if err != nil {
		return ActionNone, fmt.Errorf("failed to create event for %s: %w", intent.AgendaItemID, err)
	}
	if err := m.upsertMapping(ctx, intent, eventID, intent.Fingerprint()); err != nil {
		return ActionNone, err
	}
	m.logger.Printf("Synced %s (%s, event %s)", intent.AgendaItemID, action, eventID)
	return action, nil
}

// RemoveSync deletes the native event and the mapping for an agenda
// item. A missing mapping is a no-op success; the mapping is removed
// whether or not the native event still existed (delete is idempotent).
// A permission denial aborts before the mapping is touched.
func (m *Manager) RemoveSync(ctx context.Context, agendaItemID string) error {
	unlock := m.locks.Lock(agendaItemID)
	defer unlock()

	mapping, err := m.mappings.Get(ctx, agendaItemID)
	if err != nil {
		return err
	}
	if mapping == nil {
		return nil
	}

	if err := m.store.DeleteEvent(ctx, mapping.NativeEventID); err != nil {
		// Permission loss must not be mistaken for "item unsynced".
		return fmt.Errorf("failed to delete event for %s: %w", agendaItemID, err)
	}
	if err := m.mappings.Remove(ctx, agendaItemID); err != nil {
		return err
	}
	m.logger.Printf("Removed %s (event %s)", agendaItemID, mapping.NativeEventID)
	return nil
}

// EventStart exposes the deep-link lookup: the start time of the
// native event currently mapped to an agenda item, or nil when the
// item is unsynced or the event is absent.
func (m *Manager) EventStart(ctx context.Context, agendaItemID string) (*time.Time, error) {
	mapping, err := m.mappings.Get(ctx, agendaItemID)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}
	return m.store.EventStart(ctx, mapping.NativeEventID)
}

func (m *Manager) upsertMapping(ctx context.Context, intent calendar.Intent, eventID, fingerprint string) error {
	return m.mappings.Upsert(ctx, mapstore.Mapping{
		AgendaItemID:  intent.AgendaItemID,
		NativeEventID: eventID,
		Fingerprint:   fingerprint,
		LastSyncedAt:  time.Now().UTC(),
	})
}

// targetCalendar resolves the calendar to create events in: the
// explicit argument, then the configured default, then the first
// primary device calendar (cached once resolved).
func (m *Manager) targetCalendar(ctx context.Context, calendarID string) (string, error) {
	if calendarID != "" {
		return calendarID, nil
	}
	if m.defaultCal != "" {
		return m.defaultCal, nil
	}

	m.calMu.Lock()
	defer m.calMu.Unlock()
	if m.resolvedCal != "" {
		return m.resolvedCal, nil
	}

	cals, err := m.store.Calendars(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list calendars: %w", err)
	}
	for _, c := range cals {
		if c.Primary {
			m.resolvedCal = c.ID
			return c.ID, nil
		}
	}
	if len(cals) > 0 {
		m.resolvedCal = cals[0].ID
		return m.resolvedCal, nil
	}
	return "", errs.ErrNoCalendar
}
