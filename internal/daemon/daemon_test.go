package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/calendar/icsdir"
	"github.com/showgrid/agendacal/internal/mapstore"
	"github.com/showgrid/agendacal/internal/match"
	"github.com/showgrid/agendacal/internal/reconcile"
	"github.com/showgrid/agendacal/internal/syncer"
)

type staticSource struct {
	items []calendar.Intent
}

func (s *staticSource) EngagedItems(ctx context.Context) ([]calendar.Intent, error) {
	return s.items, nil
}

// TestNew_Validation tests required-dependency checks
func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Errorf("New() with nil source succeeded, want error")
	}
	if _, err := New(&staticSource{}, nil, nil, nil); err == nil {
		t.Errorf("New() with nil reconciler succeeded, want error")
	}
}

// TestRun_StartupPass tests that starting the daemon syncs engaged items
func TestRun_StartupPass(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")
	store, err := icsdir.Open(dir)
	if err != nil {
		t.Fatalf("icsdir.Open() failed: %v", err)
	}
	mappings, err := mapstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("mapstore.Open() failed: %v", err)
	}
	defer mappings.Close()

	manager := syncer.New(store, match.New(store, nil), mappings, syncer.Config{})
	reconciler := reconcile.New(manager, mappings, "", nil)

	source := &staticSource{items: []calendar.Intent{{
		AgendaItemID: "evt-1",
		Title:        "Opening Night",
		Start:        time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC),
	}}}

	cfg := DefaultConfig()
	cfg.Schedule = "" // no cron in tests
	cfg.WatchDir = dir
	cfg.DebounceInterval = 50 * time.Millisecond

	d, err := New(source, reconciler, nil, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// The startup pass runs synchronously before Run blocks, but give
	// the filesystem a moment anyway.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(dir)
		if len(entries) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("event files = %d, want 1", len(entries))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}
