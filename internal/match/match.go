// Package match locates the native calendar event representing an
// agenda item.
//
// Native event ids are not stable across calendar database migrations,
// account re-syncs, or app reinstalls; content matching within a
// tolerance window is the recovery path when the recorded id no longer
// resolves. Pure lookup logic, no mutation.
package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/errs"
)

// DefaultTolerance is the content-match window applied when a
// Criteria carries none.
const DefaultTolerance = 15 * time.Minute

// Criteria describes one match attempt.
//
// Tolerance bounds the content search: only events starting within
// [Start-Tolerance, Start+Tolerance] (inclusive) are candidates.
// Among candidates the closest start time wins; two legitimately
// distinct events with the same title and near-identical start times
// are not disambiguated beyond that — content matching is best effort,
// not a uniqueness guarantee.
type Criteria struct {
	// OriginalEventID is the native id recorded at last sync.
	OriginalEventID string

	Title string
	Start time.Time
	End   *time.Time

	// Tolerance is the content-match window. Zero means DefaultTolerance.
	Tolerance time.Duration
}

// Outcome tags a match result.
type Outcome int

const (
	// NotFound means neither the id nor any content candidate resolved.
	NotFound Outcome = iota
	// FoundByID means the original native id still exists.
	FoundByID
	// FoundByContent means a replacement was located by content; the
	// caller must rewrite its mapping to the new id.
	FoundByContent
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case FoundByID:
		return "found-by-id"
	case FoundByContent:
		return "found-by-content"
	case NotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Result is the outcome of one match attempt. EventID is set unless
// the outcome is NotFound.
type Result struct {
	Outcome Outcome
	EventID string
}

// Matcher resolves criteria against a calendar store.
type Matcher struct {
	store  calendar.Store
	logger *log.Logger
}

// New creates a Matcher. If logger is nil, a default logger writing to
// stderr is used.
func New(store calendar.Store, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.New(os.Stderr, "[match] ", log.LstdFlags)
	}
	return &Matcher{store: store, logger: logger}
}

// Match attempts a direct id lookup, then a content search.
//
// Permission errors propagate as errors, never as NotFound: absence
// can only be concluded when the store was actually readable.
func (m *Matcher) Match(ctx context.Context, c Criteria) (Result, error) {
	if c.OriginalEventID != "" {
		_, err := m.store.GetEvent(ctx, c.OriginalEventID)
		if err == nil {
			return Result{Outcome: FoundByID, EventID: c.OriginalEventID}, nil
		}
		if !errors.Is(err, errs.ErrEventNotFound) {
			return Result{}, fmt.Errorf("id lookup failed: %w", err)
		}
	}

	tolerance := c.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	from := c.Start.Add(-tolerance)
	to := c.Start.Add(tolerance)
	candidates, err := m.store.EventsBetween(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("content search failed: %w", err)
	}

	// Closest start time first.
	sort.Slice(candidates, func(i, j int) bool {
		return absDiff(candidates[i].Start, c.Start) < absDiff(candidates[j].Start, c.Start)
	})

	for _, cand := range candidates {
		if !titlesMatch(cand.Title, c.Title) {
			continue
		}
		m.logger.Printf("Relinked %q by content: %s -> %s", c.Title, c.OriginalEventID, cand.ID)
		return Result{Outcome: FoundByContent, EventID: cand.ID}, nil
	}
	return Result{Outcome: NotFound}, nil
}

// titlesMatch tests case-insensitive substring containment in both
// directions. Stored native titles are composites of the event name
// and other display text, so either side may contain the other.
func titlesMatch(native, wanted string) bool {
	a := strings.ToLower(strings.TrimSpace(native))
	b := strings.ToLower(strings.TrimSpace(wanted))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
