// Package caldav implements a calendar Store over a remote CalDAV
// collection (RFC 4791).
//
// Native event ids are calendar object paths on the server. Paths are
// not stable across account re-syncs or server migrations, which is
// why the engine's matcher carries a content-based fallback.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
)

const prodID = "-//showgrid//agendacal//EN"

// Config carries the CalDAV endpoint and credentials.
type Config struct {
	Endpoint string
	Username string
	Password string

	// CalendarPath optionally pins the collection to query. When empty
	// the first discovered calendar is used.
	CalendarPath string
}

// Store is a CalDAV-backed calendar.Store.
type Store struct {
	client  *caldav.Client
	account string
	calPath string
}

// Open dials the CalDAV endpoint and verifies the principal.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	httpClient := webdav.HTTPClientWithBasicAuth(http.DefaultClient, cfg.Username, cfg.Password)
	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	s := &Store{client: client, account: cfg.Username, calPath: cfg.CalendarPath}
	if s.calPath == "" {
		cals, err := s.Calendars(ctx)
		if err != nil {
			return nil, err
		}
		if len(cals) == 0 {
			return nil, errs.ErrNoCalendar
		}
		s.calPath = cals[0].ID
	}
	return s, nil
}

func (s *Store) Calendars(ctx context.Context) ([]calendar.Info, error) {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := s.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	out := make([]calendar.Info, 0, len(cals))
	for i, c := range cals {
		out = append(out, calendar.Info{
			ID:          c.Path,
			Name:        c.Name,
			Primary:     i == 0,
			AccountName: s.account,
		})
	}
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, calendarID string, data calendar.EventData) (string, error) {
	if calendarID == "" {
		calendarID = s.calPath
	}
	uid := uuid.NewString()
	objPath := path.Join(calendarID, uid+".ics")

	if _, err := s.client.PutCalendarObject(ctx, objPath, buildCalendar(uid, data)); err != nil {
		return "", fmt.Errorf("failed to create calendar object: %w", err)
	}
	return objPath, nil
}

func (s *Store) UpdateEvent(ctx context.Context, eventID string, data calendar.EventData) error {
	obj, err := s.client.GetCalendarObject(ctx, eventID)
	if err != nil {
		if isHTTPNotFound(err) {
			return fmt.Errorf("update %s: %w", eventID, errs.ErrEventNotFound)
		}
		return fmt.Errorf("failed to fetch calendar object: %w", err)
	}

	uid := objectUID(obj)
	if uid == "" {
		uid = uuid.NewString()
	}
	if _, err := s.client.PutCalendarObject(ctx, eventID, buildCalendar(uid, data)); err != nil {
		return fmt.Errorf("failed to update calendar object: %w", err)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.client.RemoveAll(ctx, eventID); err != nil {
		if isHTTPNotFound(err) {
			// Already absent: delete is idempotent.
			return nil
		}
		return fmt.Errorf("failed to delete calendar object: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	obj, err := s.client.GetCalendarObject(ctx, eventID)
	if err != nil {
		if isHTTPNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", eventID, errs.ErrEventNotFound)
		}
		return nil, fmt.Errorf("failed to fetch calendar object: %w", err)
	}
	ev := objectEvent(obj)
	if ev == nil {
		return nil, fmt.Errorf("%s contains no VEVENT: %w", eventID, errs.ErrEventNotFound)
	}
	return ev, nil
}

func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	objs, err := s.client.QueryCalendar(ctx, s.calPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar-query failed: %w", err)
	}

	var out []calendar.Event
	for i := range objs {
		if ev := objectEvent(&objs[i]); ev != nil {
			// Server-side time-range filters are advisory on some
			// implementations; re-check the window locally.
			if ev.Start.Before(from) || ev.Start.After(to) {
				continue
			}
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (s *Store) EventStart(ctx context.Context, eventID string) (*time.Time, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, errs.ErrEventNotFound) {
			return nil, nil
		}
		return nil, err
	}
	start := ev.Start
	return &start, nil
}

// buildCalendar wraps one VEVENT in a VCALENDAR for PUT.
func buildCalendar(uid string, data calendar.EventData) *ical.Calendar {
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
	return cal
}

// objectEvent extracts the first VEVENT of a calendar object, using
// the object path as the native event id.
func objectEvent(obj *caldav.CalendarObject) *calendar.Event {
	if obj.Data == nil {
		return nil
	}
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		ev := calendar.Event{ID: obj.Path}
		if prop := child.Props.Get(ical.PropSummary); prop != nil {
			ev.Title = prop.Value
		}
		if prop := child.Props.Get(ical.PropLocation); prop != nil {
			ev.Location = prop.Value
		}
		if prop := child.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				ev.Start = t
			}
		}
		if prop := child.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				end := t
				ev.End = &end
			}
		}
		return &ev
	}
	return nil
}

func objectUID(obj *caldav.CalendarObject) string {
	if obj.Data == nil {
		return ""
	}
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if prop := child.Props.Get(ical.PropUID); prop != nil {
			return prop.Value
		}
	}
	return ""
}

func isHTTPNotFound(err error) bool {
	var httpErr *webdav.HTTPError
	return errors.As(err, &httpErr) && httpErr.Code == http.StatusNotFound
}

var _ calendar.Store = (*Store)(nil)
