// Package memcal provides an in-memory calendar Store.
//
// It backs dry runs and tests: the engine's reconciliation logic is
// written against the Store contract, and memcal lets it run without a
// real calendar backend. Events can be mutated or dropped out-of-band
// to simulate a user editing the device calendar.
package memcal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
)

// Store is an in-memory calendar.Store. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	calendars []calendar.Info
	events    map[string]calendar.Event
	nextID    int
}

// New returns an empty store exposing a single primary calendar.
func New() *Store {
	return &Store{
		calendars: []calendar.Info{
			{ID: "mem-primary", Name: "Events", Primary: true, AccountName: "local"},
		},
		events: make(map[string]calendar.Event),
	}
}

func (s *Store) Calendars(ctx context.Context) ([]calendar.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calendar.Info, len(s.calendars))
	copy(out, s.calendars)
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, calendarID string, data calendar.EventData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("mem-%06d", s.nextID)
	s.events[id] = calendar.Event{
		ID:       id,
		Title:    data.Title,
		Start:    data.Start,
		End:      data.End,
		Location: data.Location,
	}
	return id, nil
}

func (s *Store) UpdateEvent(ctx context.Context, eventID string, data calendar.EventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; !ok {
		return fmt.Errorf("update %s: %w", eventID, errs.ErrEventNotFound)
	}
	s.events[eventID] = calendar.Event{
		ID:       eventID,
		Title:    data.Title,
		Start:    data.Start,
		End:      data.End,
		Location: data.Location,
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Absent is success: delete is idempotent.
	delete(s.events, eventID)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", eventID, errs.ErrEventNotFound)
	}
	return &ev, nil
}

func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []calendar.Event
	for _, ev := range s.events {
		if ev.Start.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) EventStart(ctx context.Context, eventID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}
	start := ev.Start
	return &start, nil
}

// Drop removes an event out-of-band, simulating an external edit of
// the device calendar. Returns whether the event existed.
func (s *Store) Drop(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventID]
	delete(s.events, eventID)
	return ok
}

// Put inserts an event with a caller-chosen id, simulating an event
// that predates the engine (or survived a reinstall).
func (s *Store) Put(ev calendar.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

// Len reports the number of events currently in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var _ calendar.Store = (*Store)(nil)
