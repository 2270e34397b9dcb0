package autosync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/showgrid/agendacal/internal/calendar"
)

// MessageType tags a push message from the events platform.
type MessageType string

const (
	// MessageTypeAgendaUpdate carries changed time/venue/title for an
	// agenda item the user is engaged with.
	MessageTypeAgendaUpdate MessageType = "agenda_update"

	// MessageTypeAgendaDelete announces a server-side removal.
	MessageTypeAgendaDelete MessageType = "agenda_delete"
)

// Message is the push envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// UpdatePayload carries enough state to rebuild a sync intent without
// an additional network round-trip.
type UpdatePayload struct {
	EventID         string `json:"eventId"`
	CalendarEventID string `json:"calendarEventId"`
	Title           string `json:"title"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
	VenueID         string `json:"venueId,omitempty"`
	VenueName       string `json:"venueName,omitempty"`
}

// DeletePayload announces a server-side agenda item removal.
type DeletePayload struct {
	EventID         string `json:"eventId"`
	CalendarEventID string `json:"calendarEventId"`
	Title           string `json:"title"`
}

// Intent rebuilds the sync intent from the payload fields. Times are
// RFC 3339; a bare timezone name (IANA) reanchors them when present.
func (p *UpdatePayload) Intent() (calendar.Intent, error) {
	intent := calendar.Intent{
		AgendaItemID: p.EventID,
		Title:        p.Title,
		VenueID:      p.VenueID,
		VenueName:    p.VenueName,
	}
	if p.EventID == "" {
		return intent, fmt.Errorf("payload missing eventId")
	}

	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return intent, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
		}
		loc = l
	}

	if p.StartTime != "" {
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			return intent, fmt.Errorf("invalid startTime %q: %w", p.StartTime, err)
		}
		intent.Start = start.In(loc)
	}
	if p.EndTime != "" {
		end, err := time.Parse(time.RFC3339, p.EndTime)
		if err != nil {
			return intent, fmt.Errorf("invalid endTime %q: %w", p.EndTime, err)
		}
		e := end.In(loc)
		intent.End = &e
	}
	return intent, nil
}

// EngagementChange is one user RSVP transition from the UI layer.
type EngagementChange struct {
	// Going reports the new engagement state.
	Going bool

	// Intent is required when Going is true.
	Intent calendar.Intent

	// AgendaItemID identifies the item when Going is false.
	AgendaItemID string
}
