package reconcile

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/calendar/memcal"
	"github.com/showgrid/agendacal/internal/mapstore"
	"github.com/showgrid/agendacal/internal/match"
	"github.com/showgrid/agendacal/internal/syncer"
)

// countingStore wraps a Store and counts creates.
type countingStore struct {
	calendar.Store
	mu      sync.Mutex
	creates int
}

func (c *countingStore) CreateEvent(ctx context.Context, calendarID string, data calendar.EventData) (string, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.Store.CreateEvent(ctx, calendarID, data)
}

type fixture struct {
	mem      *memcal.Store
	counts   *countingStore
	mappings *mapstore.Store
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memcal.New()
	counts := &countingStore{Store: mem}
	mappings, err := mapstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("mapstore.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = mappings.Close() })

	manager := syncer.New(counts, match.New(counts, nil), mappings, syncer.Config{})
	return &fixture{
		mem:      mem,
		counts:   counts,
		mappings: mappings,
		service:  New(manager, mappings, "", nil),
	}
}

func intentAt(id, title string, start time.Time) calendar.Intent {
	return calendar.Intent{AgendaItemID: id, Title: title, Start: start}
}

var base = time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

// TestRun_CreatesAndMarks tests a first pass on a fresh install
func TestRun_CreatesAndMarks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	engaged := []calendar.Intent{
		intentAt("evt-1", "Opening Night", base),
		intentAt("evt-2", "Closing Party", base.Add(48*time.Hour)),
	}

	summary, err := f.service.Run(ctx, engaged)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Created != 2 {
		t.Errorf("created = %d, want 2", summary.Created)
	}
	if f.mem.Len() != 2 {
		t.Errorf("event count = %d, want 2", f.mem.Len())
	}

	marked, err := f.mappings.InstallMarker(ctx)
	if err != nil {
		t.Fatalf("InstallMarker() failed: %v", err)
	}
	if !marked {
		t.Errorf("install marker not written after the pass")
	}
}

// TestRun_SecondPassUnchanged tests that a repeat pass is all no-ops
func TestRun_SecondPassUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	engaged := []calendar.Intent{intentAt("evt-1", "Opening Night", base)}
	if _, err := f.service.Run(ctx, engaged); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}

	summary, err := f.service.Run(ctx, engaged)
	if err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}
	if summary.Unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", summary.Unchanged)
	}
	if summary.Created+summary.Updated+summary.Healed+summary.Recreated != 0 {
		t.Errorf("second pass performed work: %+v", summary)
	}
	if f.counts.creates != 1 {
		t.Errorf("creates = %d, want 1", f.counts.creates)
	}
}

// TestRun_RemovesDisengaged tests cleanup of withdrawn RSVPs
func TestRun_RemovesDisengaged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	engaged := []calendar.Intent{
		intentAt("evt-1", "Opening Night", base),
		intentAt("evt-2", "Closing Party", base.Add(48*time.Hour)),
	}
	if _, err := f.service.Run(ctx, engaged); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// RSVP withdrawn for evt-2.
	summary, err := f.service.Run(ctx, engaged[:1])
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Removed != 1 {
		t.Errorf("removed = %d, want 1", summary.Removed)
	}
	if f.mem.Len() != 1 {
		t.Errorf("event count = %d, want 1", f.mem.Len())
	}
	if m, _ := f.mappings.Get(ctx, "evt-2"); m != nil {
		t.Errorf("mapping for withdrawn item still present")
	}
}

// TestRun_HealsExternallyDeleted tests recreate counting
func TestRun_HealsExternallyDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	engaged := []calendar.Intent{intentAt("evt-1", "Opening Night", base)}
	if _, err := f.service.Run(ctx, engaged); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	m, _ := f.mappings.Get(ctx, "evt-1")
	f.mem.Drop(m.NativeEventID)

	summary, err := f.service.Run(ctx, engaged)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Recreated != 1 {
		t.Errorf("recreated = %d, want 1", summary.Recreated)
	}
	if f.mem.Len() != 1 {
		t.Errorf("event count = %d, want 1", f.mem.Len())
	}
}

// TestRun_FreshInstallRelinks tests the restore scenario: stale mapping,
// surviving native event, no duplicate created
func TestRun_FreshInstallRelinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Restored state: a mapping whose native id means nothing, while
	// the event itself survived in a cloud calendar under another id.
	// No install marker has ever been written.
	if err := f.mappings.Upsert(ctx, mapstore.Mapping{
		AgendaItemID:  "evt-1",
		NativeEventID: "pre-reinstall-id",
		Fingerprint:   intentAt("evt-1", "Opening Night", base).Fingerprint(),
		LastSyncedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	f.mem.Put(calendar.Event{ID: "cloud-id", Title: "Opening Night", Start: base})

	summary, err := f.service.Run(ctx, []calendar.Intent{intentAt("evt-1", "Opening Night", base)})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Healed != 1 {
		t.Errorf("healed = %d, want 1", summary.Healed)
	}
	if f.counts.creates != 0 {
		t.Errorf("creates = %d, want 0 (relink must not duplicate)", f.counts.creates)
	}
	if f.mem.Len() != 1 {
		t.Errorf("event count = %d, want 1", f.mem.Len())
	}

	m, _ := f.mappings.Get(ctx, "evt-1")
	if m.NativeEventID != "cloud-id" {
		t.Errorf("mapping id = %q, want %q", m.NativeEventID, "cloud-id")
	}
}

// TestRun_ItemFailureNotFatal tests that one bad item doesn't stop the pass
func TestRun_ItemFailureNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	engaged := []calendar.Intent{
		{AgendaItemID: "bad", Title: "", Start: base}, // fails validation
		intentAt("evt-1", "Opening Night", base),
	}

	summary, err := f.service.Run(ctx, engaged)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Created != 1 {
		t.Errorf("created = %d, want 1", summary.Created)
	}
}
