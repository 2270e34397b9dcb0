// Package icsdir implements a calendar Store over a directory of
// .ics files, one event per file.
//
// The directory is the device-local calendar database: other programs
// (or the user) can add, edit, or wipe files at any time, which is
// exactly the volatility the sync engine is built to tolerate. Event
// ids are iCalendar UIDs; files are named <uid>.ics but lookups fall
// back to scanning UID properties so externally-written files with
// other names still resolve.
package icsdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
)

const prodID = "-//showgrid//agendacal//EN"

// Store is a directory-backed calendar.Store.
type Store struct {
	dir  string
	name string
}

// Open prepares a store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create calendar directory: %w", err)
	}
	return &Store{dir: dir, name: filepath.Base(dir)}, nil
}

func (s *Store) Calendars(ctx context.Context) ([]calendar.Info, error) {
	return []calendar.Info{
		{ID: s.dir, Name: s.name, Primary: true, AccountName: "device"},
	}, nil
}

func (s *Store) CreateEvent(ctx context.Context, calendarID string, data calendar.EventData) (string, error) {
	uid := uuid.NewString()
	if err := s.writeEvent(uid, data); err != nil {
		return "", err
	}
	return uid, nil
}

func (s *Store) UpdateEvent(ctx context.Context, eventID string, data calendar.EventData) error {
	path, err := s.resolve(ctx, eventID)
	if err != nil {
		return err
	}
	// Rewrite in place under the resolved filename so external names
	// survive the update.
	uid := eventID
	return s.writeEventAt(path, uid, data)
}

func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	path, err := s.resolve(ctx, eventID)
	if err != nil {
		if isNotFound(err) {
			// Already absent: delete is idempotent.
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete event file: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	path, err := s.resolve(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ev, err := readEventFile(path)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar directory: %w", err)
	}

	var out []calendar.Event
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ics") {
			continue
		}
		ev, err := readEventFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			// Malformed files are someone else's: skip, don't fail the scan.
			continue
		}
		if ev.Start.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, *ev)
	}
	return out, nil
}

func (s *Store) EventStart(ctx context.Context, eventID string) (*time.Time, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	start := ev.Start
	return &start, nil
}

// resolve maps an event id to the file holding it. The canonical name
// <uid>.ics is tried first, then a UID scan.
func (s *Store) resolve(ctx context.Context, eventID string) (string, error) {
	direct := filepath.Join(s.dir, eventID+".ics")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read calendar directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ics") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		ev, err := readEventFile(path)
		if err != nil {
			continue
		}
		if ev.ID == eventID {
			return path, nil
		}
	}
	return "", fmt.Errorf("event %s: %w", eventID, errs.ErrEventNotFound)
}

func (s *Store) writeEvent(uid string, data calendar.EventData) error {
	return s.writeEventAt(filepath.Join(s.dir, uid+".ics"), uid, data)
}

func (s *Store) writeEventAt(path, uid string, data calendar.EventData) error {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetText(ical.PropSummary, data.Title)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, data.Start)
	if data.End != nil {
		event.Props.SetDateTime(ical.PropDateTimeEnd, *data.End)
	}
	if data.Location != "" {
		event.Props.SetText(ical.PropLocation, data.Location)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, event.Component)

	var b strings.Builder
	if err := ical.NewEncoder(&b).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode event %s: %w", uid, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write event file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace event file: %w", err)
	}
	return nil
}

// readEventFile decodes the first VEVENT in an .ics file.
func readEventFile(path string) (*calendar.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("event file %s: %w", path, errs.ErrEventNotFound)
		}
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()

	cal, err := ical.NewDecoder(f).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		ev := parseEvent(child)
		if ev.ID == "" {
			// No UID: fall back to the filename base.
			ev.ID = strings.TrimSuffix(filepath.Base(path), ".ics")
		}
		return &ev, nil
	}
	return nil, fmt.Errorf("%s contains no VEVENT: %w", path, errs.ErrEventNotFound)
}

func parseEvent(comp *ical.Component) calendar.Event {
	var ev calendar.Event

	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		ev.ID = prop.Value
	}
	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		ev.Title = prop.Value
	}
	if prop := comp.Props.Get(ical.PropLocation); prop != nil {
		ev.Location = prop.Value
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, err := parseDateTime(prop); err == nil {
			ev.Start = t
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := parseDateTime(prop); err == nil {
			end := t
			ev.End = &end
		}
	}
	return ev
}

// parseDateTime reads a date-time property, falling back to common raw
// formats when the standard decode fails (externally-written files are
// not always well-formed).
func parseDateTime(prop *ical.Prop) (time.Time, error) {
	if t, err := prop.DateTime(time.UTC); err == nil {
		return t, nil
	}

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, prop.Value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date-time %q", prop.Value)
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrEventNotFound)
}

var _ calendar.Store = (*Store)(nil)
