package icsdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s
}

func testData() calendar.EventData {
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	return calendar.EventData{
		Title:    "Opening Night",
		Start:    start,
		End:      &end,
		Location: "Warehouse 9",
	}
}

// TestCreateGet_Roundtrip tests writing and reading an event back
func TestCreateGet_Roundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateEvent(ctx, "", testData())
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	if id == "" {
		t.Fatal("CreateEvent() returned empty id")
	}

	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if ev.Title != "Opening Night" {
		t.Errorf("title = %q, want %q", ev.Title, "Opening Night")
	}
	if ev.Location != "Warehouse 9" {
		t.Errorf("location = %q, want %q", ev.Location, "Warehouse 9")
	}
	if !ev.Start.Equal(testData().Start) {
		t.Errorf("start = %v, want %v", ev.Start, testData().Start)
	}
	if ev.End == nil || !ev.End.Equal(*testData().End) {
		t.Errorf("end = %v, want %v", ev.End, testData().End)
	}
}

// TestUpdateEvent tests rewriting an event in place
func TestUpdateEvent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateEvent(ctx, "", testData())
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}

	changed := testData()
	changed.Title = "Opening Night (rescheduled)"
	changed.Start = changed.Start.Add(2 * time.Hour)
	if err := s.UpdateEvent(ctx, id, changed); err != nil {
		t.Fatalf("UpdateEvent() failed: %v", err)
	}

	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if ev.Title != changed.Title {
		t.Errorf("title = %q, want %q", ev.Title, changed.Title)
	}
	if !ev.Start.Equal(changed.Start) {
		t.Errorf("start = %v, want %v", ev.Start, changed.Start)
	}
}

// TestUpdateEvent_Missing tests the not-found error path
func TestUpdateEvent_Missing(t *testing.T) {
	s := testStore(t)
	err := s.UpdateEvent(context.Background(), "nope", testData())
	if !errors.Is(err, errs.ErrEventNotFound) {
		t.Errorf("error = %v, want ErrEventNotFound", err)
	}
}

// TestDeleteEvent_Idempotent tests that deleting twice succeeds
func TestDeleteEvent_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateEvent(ctx, "", testData())
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, id); err != nil {
		t.Fatalf("first DeleteEvent() failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, id); err != nil {
		t.Errorf("second DeleteEvent() failed: %v", err)
	}
	if _, err := s.GetEvent(ctx, id); !errors.Is(err, errs.ErrEventNotFound) {
		t.Errorf("GetEvent() after delete = %v, want ErrEventNotFound", err)
	}
}

// TestEventsBetween_Window tests inclusive window filtering
func TestEventsBetween_Window(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	base := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 10 * time.Minute, 2 * time.Hour} {
		data := testData()
		data.Start = base.Add(offset)
		data.End = nil
		if _, err := s.CreateEvent(ctx, "", data); err != nil {
			t.Fatalf("CreateEvent() failed: %v", err)
		}
	}

	events, err := s.EventsBetween(ctx, base.Add(-15*time.Minute), base.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("EventsBetween() failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(events))
	}
}

// TestEventStart_Absent tests the nil-not-error contract
func TestEventStart_Absent(t *testing.T) {
	s := testStore(t)
	start, err := s.EventStart(context.Background(), "nope")
	if err != nil {
		t.Fatalf("EventStart() failed: %v", err)
	}
	if start != nil {
		t.Errorf("start = %v, want nil", start)
	}
}

// TestResolve_ExternalFilename tests UID lookup for files the engine
// didn't name
func TestResolve_ExternalFilename(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	ics := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//someone-else//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:external-uid-1\r\n" +
		"DTSTAMP:20260901T120000Z\r\n" +
		"SUMMARY:Opening Night\r\n" +
		"DTSTART:20260912T200000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	if err := os.WriteFile(filepath.Join(s.dir, "arbitrary-name.ics"), []byte(ics), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ev, err := s.GetEvent(ctx, "external-uid-1")
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if ev.Title != "Opening Night" {
		t.Errorf("title = %q, want %q", ev.Title, "Opening Night")
	}
	if ev.ID != "external-uid-1" {
		t.Errorf("id = %q, want %q", ev.ID, "external-uid-1")
	}
}

// TestCalendars tests the single-directory calendar listing
func TestCalendars(t *testing.T) {
	s := testStore(t)
	cals, err := s.Calendars(context.Background())
	if err != nil {
		t.Fatalf("Calendars() failed: %v", err)
	}
	if len(cals) != 1 {
		t.Fatalf("len(cals) = %d, want 1", len(cals))
	}
	if !cals[0].Primary {
		t.Errorf("calendar not marked primary")
	}
}
