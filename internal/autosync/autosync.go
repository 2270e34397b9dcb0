// Package autosync converts engagement changes and push-delivered
// server payloads into sync manager calls.
//
// Purely event-driven, no polling. Every invocation is independent and
// safe to retry; redundant triggers for the same agenda item collapse
// at the manager's per-item lock. Failures are logged and left for the
// next reconciliation pass, never propagated past this boundary.
package autosync

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/showgrid/agendacal/internal/syncer"
)

// Config holds configuration for the auto-sync service.
type Config struct {
	// PushURL is the WebSocket endpoint delivering push payloads.
	// Empty disables the push subscription (engagement changes still work).
	PushURL string

	// CalendarID is the sync target for new events; empty lets the
	// manager resolve the primary device calendar.
	CalendarID string

	// ReconnectMin/Max bound the backoff between subscription attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// Logger for auto-sync activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectMin: time.Second,
		ReconnectMax: time.Minute,
		Logger:       log.New(os.Stderr, "[autosync] ", log.LstdFlags),
	}
}

// Service reacts to engagement and push streams.
type Service struct {
	manager     *syncer.Manager
	config      Config
	engagements chan EngagementChange
}

// New creates a Service around the given manager.
func New(manager *syncer.Manager, config Config) *Service {
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[autosync] ", log.LstdFlags)
	}
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = time.Second
	}
	if config.ReconnectMax < config.ReconnectMin {
		config.ReconnectMax = time.Minute
	}
	return &Service{
		manager:     manager,
		config:      config,
		engagements: make(chan EngagementChange, 16),
	}
}

// Engagements is the channel the UI layer submits RSVP transitions on.
func (s *Service) Engagements() chan<- EngagementChange {
	return s.engagements
}

// Run consumes both streams until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.config.PushURL != "" {
		go s.subscribeLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-s.engagements:
			s.handleEngagement(ctx, change)
		}
	}
}

func (s *Service) handleEngagement(ctx context.Context, change EngagementChange) {
	if change.Going {
		action, err := s.manager.EnsureSynced(ctx, change.Intent, s.config.CalendarID)
		if err != nil {
			s.config.Logger.Printf("Failed to sync %s after RSVP: %v", change.Intent.AgendaItemID, err)
			return
		}
		s.config.Logger.Printf("RSVP sync %s: %s", change.Intent.AgendaItemID, action)
		return
	}

	id := change.AgendaItemID
	if id == "" {
		id = change.Intent.AgendaItemID
	}
	if err := s.manager.RemoveSync(ctx, id); err != nil {
		s.config.Logger.Printf("Failed to unsync %s after withdrawal: %v", id, err)
		return
	}
	s.config.Logger.Printf("Withdrawal unsync %s", id)
}

// subscribeLoop keeps a push subscription alive with capped backoff.
func (s *Service) subscribeLoop(ctx context.Context) {
	backoff := s.config.ReconnectMin
	for {
		err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.config.Logger.Printf("Push subscription lost: %v (retrying in %s)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.config.ReconnectMax {
			backoff = s.config.ReconnectMax
		}
	}
}

func (s *Service) subscribe(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.config.PushURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.config.Logger.Printf("Push subscription established: %s", s.config.PushURL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		s.HandleRaw(ctx, data)
	}
}

// HandleRaw dispatches one push message. Malformed or unknown messages
// are logged and skipped; they never abort the subscription.
func (s *Service) HandleRaw(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.config.Logger.Printf("Dropping malformed push message: %v", err)
		return
	}

	switch msg.Type {
	case MessageTypeAgendaUpdate:
		var payload UpdatePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			s.config.Logger.Printf("Dropping malformed update payload: %v", err)
			return
		}
		s.HandleUpdate(ctx, payload)

	case MessageTypeAgendaDelete:
		var payload DeletePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			s.config.Logger.Printf("Dropping malformed delete payload: %v", err)
			return
		}
		s.HandleDelete(ctx, payload)

	default:
		s.config.Logger.Printf("Ignoring push message type %q", msg.Type)
	}
}

// HandleUpdate applies a push-delivered server-side edit.
func (s *Service) HandleUpdate(ctx context.Context, payload UpdatePayload) {
	intent, err := payload.Intent()
	if err != nil {
		s.config.Logger.Printf("Dropping update payload: %v", err)
		return
	}
	action, err := s.manager.EnsureSynced(ctx, intent, s.config.CalendarID)
	if err != nil {
		s.config.Logger.Printf("Failed push sync %s: %v", intent.AgendaItemID, err)
		return
	}
	s.config.Logger.Printf("Push sync %s: %s", intent.AgendaItemID, action)
}

// HandleDelete applies a push-delivered removal.
func (s *Service) HandleDelete(ctx context.Context, payload DeletePayload) {
	if payload.EventID == "" {
		s.config.Logger.Printf("Dropping delete payload without eventId")
		return
	}
	if err := s.manager.RemoveSync(ctx, payload.EventID); err != nil {
		s.config.Logger.Printf("Failed push unsync %s: %v", payload.EventID, err)
		return
	}
	s.config.Logger.Printf("Push unsync %s", payload.EventID)
}
