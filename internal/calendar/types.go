// Package calendar defines the device calendar store contract and the
// data types shared by the sync engine.
//
// A Store is the only component that touches a calendar backend. The
// engine treats the backing store as volatile: other processes can
// edit or wipe it at any time, so nothing above this package assumes
// an event it created still exists without verifying first.
package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Intent is the server-truth snapshot needed to sync one agenda item.
// Immutable per sync invocation; produced by the network boundary.
type Intent struct {
	// AgendaItemID is the server-side agenda item identifier.
	AgendaItemID string `json:"agenda_item_id"`

	// Title is the display title of the agenda item.
	Title string `json:"title"`

	// Start is the start time, carrying its timezone.
	Start time.Time `json:"start"`

	// End is the optional end time.
	End *time.Time `json:"end,omitempty"`

	// VenueID and VenueName describe the optional venue.
	VenueID   string `json:"venue_id,omitempty"`
	VenueName string `json:"venue_name,omitempty"`
}

// Validate checks that the intent carries the fields every sync needs.
func (in Intent) Validate() error {
	if in.AgendaItemID == "" {
		return fmt.Errorf("agenda_item_id is required")
	}
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if in.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if in.End != nil && in.End.Before(in.Start) {
		return fmt.Errorf("end %s is before start %s", in.End, in.Start)
	}
	return nil
}

// Fingerprint returns a stable hex digest over the sync-relevant fields.
// Times are canonicalized to UTC unix seconds, so the same instant
// expressed in a different zone does not register as a content change.
func (in Intent) Fingerprint() string {
	var b strings.Builder
	b.WriteString(in.Title)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(in.Start.UTC().Unix(), 10))
	b.WriteByte('\n')
	if in.End != nil {
		b.WriteString(strconv.FormatInt(in.End.UTC().Unix(), 10))
	} else {
		b.WriteByte('-')
	}
	b.WriteByte('\n')
	b.WriteString(in.VenueID)
	b.WriteByte('\n')
	b.WriteString(in.VenueName)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// EventData converts the intent into the writable event fields.
func (in Intent) EventData() EventData {
	return EventData{
		Title:    in.Title,
		Start:    in.Start,
		End:      in.End,
		Location: in.VenueName,
	}
}

// EventData is the writable portion of a native calendar event.
type EventData struct {
	Title    string
	Start    time.Time
	End      *time.Time
	Location string
}

// Event is a native calendar event as read back from a Store.
type Event struct {
	// ID is the backend-assigned native event identifier. Not stable
	// across store migrations or account re-syncs.
	ID       string
	Title    string
	Start    time.Time
	End      *time.Time
	Location string
}

// Info describes one device calendar available as a sync target.
type Info struct {
	ID          string
	Name        string
	Primary     bool
	AccountName string
	Color       string
}
