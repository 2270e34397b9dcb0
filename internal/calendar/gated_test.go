package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/showgrid/agendacal/internal/errs"
)

type staticPerms bool

func (p staticPerms) Granted() bool { return bool(p) }

// panicStore fails the test if any method is reached.
type panicStore struct {
	t *testing.T
}

func (s panicStore) Calendars(ctx context.Context) ([]Info, error) {
	s.t.Fatal("backend reached despite denied permission")
	return nil, nil
}
func (s panicStore) CreateEvent(ctx context.Context, calendarID string, data EventData) (string, error) {
	s.t.Fatal("backend reached despite denied permission")
	return "", nil
}
func (s panicStore) UpdateEvent(ctx context.Context, eventID string, data EventData) error {
	s.t.Fatal("backend reached despite denied permission")
	return nil
}
func (s panicStore) DeleteEvent(ctx context.Context, eventID string) error {
	s.t.Fatal("backend reached despite denied permission")
	return nil
}
func (s panicStore) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	s.t.Fatal("backend reached despite denied permission")
	return nil, nil
}
func (s panicStore) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	s.t.Fatal("backend reached despite denied permission")
	return nil, nil
}
func (s panicStore) EventStart(ctx context.Context, eventID string) (*time.Time, error) {
	s.t.Fatal("backend reached despite denied permission")
	return nil, nil
}

// TestGated_Denied tests that every operation short-circuits with
// ErrPermissionDenied and never touches the backend
func TestGated_Denied(t *testing.T) {
	ctx := context.Background()
	gated := NewGated(staticPerms(false), panicStore{t: t})

	now := time.Now()
	calls := map[string]func() error{
		"Calendars":     func() error { _, err := gated.Calendars(ctx); return err },
		"CreateEvent":   func() error { _, err := gated.CreateEvent(ctx, "cal", EventData{}); return err },
		"UpdateEvent":   func() error { return gated.UpdateEvent(ctx, "id", EventData{}) },
		"DeleteEvent":   func() error { return gated.DeleteEvent(ctx, "id") },
		"GetEvent":      func() error { _, err := gated.GetEvent(ctx, "id"); return err },
		"EventsBetween": func() error { _, err := gated.EventsBetween(ctx, now, now); return err },
		"EventStart":    func() error { _, err := gated.EventStart(ctx, "id"); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, errs.ErrPermissionDenied) {
			t.Errorf("%s: error = %v, want ErrPermissionDenied", name, err)
		}
	}
}
