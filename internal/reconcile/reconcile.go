// Package reconcile runs full passes over all tracked sync mappings.
//
// A pass verifies every engaged agenda item still points at a live
// native event (healing drifted ids by content match), removes events
// for items the user is no longer engaged with, and detects
// fresh-install scenarios where restored mappings carry native ids
// that no longer mean anything.
//
// The pass is resilient: individual item failures are counted and
// logged, never fatal to the pass.
package reconcile

import (
	"context"
	"log"
	"os"

	"github.com/showgrid/agendacal/internal/calendar"
	"github.com/showgrid/agendacal/internal/mapstore"
	"github.com/showgrid/agendacal/internal/syncer"
)

// Summary aggregates the outcomes of one reconciliation pass.
type Summary struct {
	// Created counts first-time syncs.
	Created int
	// Updated counts server-side content changes written through.
	Updated int
	// Healed counts mappings relinked by content to a drifted id.
	Healed int
	// Recreated counts externally-deleted events created again.
	Recreated int
	// Removed counts mappings cleaned up for disengaged items.
	Removed int
	// Unchanged counts items already correctly synced.
	Unchanged int
	// Failed counts item-level failures (logged, retried next pass).
	Failed int
}

// Service reconciles local mappings with server engagement state.
type Service struct {
	manager  *syncer.Manager
	mappings *mapstore.Store
	logger   *log.Logger

	// calendarID is the target for newly created events; empty lets
	// the manager resolve the primary device calendar.
	calendarID string
}

// New creates a reconciliation Service. If logger is nil, a default
// logger writing to stderr is used.
func New(manager *syncer.Manager, mappings *mapstore.Store, calendarID string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Service{
		manager:    manager,
		mappings:   mappings,
		logger:     logger,
		calendarID: calendarID,
	}
}

// Run performs a full reconciliation pass.
//
// engaged is the set of agenda items the user currently holds an RSVP
// for, as reported by the server. Every engaged item is ensured
// synced; every mapping outside the engaged set is removed. When the
// install marker is absent (fresh install or restore), stored native
// ids are presumed stale: the ensure path relinks by content before it
// ever recreates, so calendar data that survived a reinstall is
// re-adopted instead of duplicated. The marker is written once the
// pass completes.
func (s *Service) Run(ctx context.Context, engaged []calendar.Intent) (Summary, error) {
	var summary Summary

	freshInstall, err := s.mappings.InstallMarker(ctx)
	if err != nil {
		return summary, err
	}
	freshInstall = !freshInstall
	if freshInstall {
		s.logger.Printf("Install marker absent: treating stored native ids as stale")
	}

	s.logger.Printf("Starting reconciliation: %d engaged items", len(engaged))

	engagedSet := make(map[string]bool, len(engaged))
	for i := range engaged {
		intent := engaged[i]
		engagedSet[intent.AgendaItemID] = true

		action, err := s.manager.EnsureSynced(ctx, intent, s.calendarID)
		if err != nil {
			summary.Failed++
			s.logger.Printf("Failed to sync %s: %v", intent.AgendaItemID, err)
			continue
		}
		switch action {
		case syncer.ActionCreated:
			summary.Created++
		case syncer.ActionUpdated:
			summary.Updated++
		case syncer.ActionRelinked:
			summary.Healed++
		case syncer.ActionRecreated:
			summary.Recreated++
		default:
			summary.Unchanged++
		}
	}

	// Mappings for items the user is no longer engaged with.
	all, err := s.mappings.All(ctx)
	if err != nil {
		return summary, err
	}
	for _, m := range all {
		if engagedSet[m.AgendaItemID] {
			continue
		}
		if err := s.manager.RemoveSync(ctx, m.AgendaItemID); err != nil {
			summary.Failed++
			s.logger.Printf("Failed to remove %s: %v", m.AgendaItemID, err)
			continue
		}
		summary.Removed++
	}

	if freshInstall {
		if err := s.mappings.WriteInstallMarker(ctx); err != nil {
			return summary, err
		}
	}

	s.logger.Printf("Reconciliation complete: created=%d updated=%d healed=%d recreated=%d removed=%d unchanged=%d failed=%d",
		summary.Created, summary.Updated, summary.Healed, summary.Recreated,
		summary.Removed, summary.Unchanged, summary.Failed)

	return summary, nil
}
