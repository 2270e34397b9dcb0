// Package daemon runs the always-on sync engine.
//
// The daemon:
// 1. Performs an initial reconciliation pass on start
// 2. Runs scheduled passes on a cron schedule
// 3. Watches the local calendar directory for external edits and
//    triggers a debounced pass when they settle
// 4. Keeps the auto-sync push subscription alive
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/showgrid/agendacal/internal/agenda"
	"github.com/showgrid/agendacal/internal/autosync"
	"github.com/showgrid/agendacal/internal/reconcile"
)

// Config holds configuration for the daemon.
type Config struct {
	// Schedule is a cron expression for periodic reconciliation.
	Schedule string

	// WatchDir is the local calendar directory to watch for external
	// edits. Empty disables watching (e.g. caldav backend).
	WatchDir string

	// DebounceInterval is how long external edits must settle before a
	// pass runs. Batches rapid updates together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Schedule:         "@every 30m",
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates reconciliation and auto-sync.
type Daemon struct {
	source     agenda.Source
	reconciler *reconcile.Service
	auto       *autosync.Service
	config     *Config

	reconcileMu sync.Mutex
	wg          sync.WaitGroup
}

// New creates a Daemon. Use Run to start it.
func New(source agenda.Source, reconciler *reconcile.Service, auto *autosync.Service, config *Config) (*Daemon, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	return &Daemon{
		source:     source,
		reconciler: reconciler,
		auto:       auto,
		config:     config,
	}, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	// Initial pass: app-foreground semantics.
	d.runPass(ctx, "startup")

	scheduler := cron.New()
	if d.config.Schedule != "" {
		_, err := scheduler.AddFunc(d.config.Schedule, func() {
			d.runPass(ctx, "scheduled")
		})
		if err != nil {
			return fmt.Errorf("invalid reconcile schedule %q: %w", d.config.Schedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if d.config.WatchDir != "" {
		if err := d.watch(ctx); err != nil {
			return err
		}
	}

	if d.auto != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.auto.Run(ctx); err != nil && ctx.Err() == nil {
				d.config.Logger.Printf("Auto-sync stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	d.config.Logger.Println("Shutting down daemon")
	d.wg.Wait()
	return nil
}

// runPass executes one reconciliation pass. Passes are serialized so a
// scheduled pass can't overlap a watcher-triggered one.
func (d *Daemon) runPass(ctx context.Context, trigger string) {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()

	engaged, err := d.source.EngagedItems(ctx)
	if err != nil {
		d.config.Logger.Printf("Failed to load engaged items (%s pass): %v", trigger, err)
		return
	}

	summary, err := d.reconciler.Run(ctx, engaged)
	if err != nil {
		d.config.Logger.Printf("Reconciliation failed (%s pass): %v", trigger, err)
		return
	}
	d.config.Logger.Printf("Pass (%s): created=%d updated=%d healed=%d recreated=%d removed=%d failed=%d",
		trigger, summary.Created, summary.Updated, summary.Healed,
		summary.Recreated, summary.Removed, summary.Failed)
}

// watch debounces external calendar edits into reconciliation passes.
func (d *Daemon) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(d.config.WatchDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", d.config.WatchDir, err)
	}
	d.config.Logger.Printf("Watching calendar directory: %s", d.config.WatchDir)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer watcher.Close()

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".ics") {
					continue
				}
				// Our own writes land as <uid>.ics.tmp renames too;
				// the debounce window absorbs the churn either way.
				if timer == nil {
					timer = time.NewTimer(d.config.DebounceInterval)
					timerC = timer.C
				} else {
					timer.Reset(d.config.DebounceInterval)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.config.Logger.Printf("Watcher error: %v", err)

			case <-timerC:
				timer = nil
				timerC = nil
				d.runPass(ctx, "watcher")
			}
		}
	}()
	return nil
}
