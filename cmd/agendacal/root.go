package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/showgrid/agendacal/internal/calendar"
	caldavstore "github.com/showgrid/agendacal/internal/calendar/caldav"
	"github.com/showgrid/agendacal/internal/calendar/icsdir"
	"github.com/showgrid/agendacal/internal/calendar/memcal"
	"github.com/showgrid/agendacal/internal/config"
	"github.com/showgrid/agendacal/internal/mapstore"
	"github.com/showgrid/agendacal/internal/match"
	"github.com/showgrid/agendacal/internal/perms"
	"github.com/showgrid/agendacal/internal/reconcile"
	"github.com/showgrid/agendacal/internal/syncer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agendacal",
	Short: "Sync RSVP'd agenda items into the device calendar",
	Long: `agendacal keeps the device calendar in step with the agenda items
you have RSVP'd to on the events platform.

The engine is idempotent: re-running any command converges on the same
state, never duplicating or orphaning calendar entries. State lives in
the state directory (default ~/.agendacal).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: config.yaml in the state dir)")
}

// engine bundles the composed sync components for one CLI invocation.
type engine struct {
	cfg        *config.Config
	perms      *perms.Store
	store      calendar.Store
	mappings   *mapstore.Store
	manager    *syncer.Manager
	reconciler *reconcile.Service
	logWriter  io.Closer
}

// buildEngine composes the engine from configuration. useLogFile
// routes logs through the rotating daemon log when one is configured.
func buildEngine(ctx context.Context, useLogFile bool) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var logOut io.Writer = os.Stderr
	var logCloser io.Closer
	if useLogFile && cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		logOut = io.MultiWriter(os.Stderr, rotator)
		logCloser = rotator
	}

	grants, err := perms.Open(cfg.GrantPath())
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := calendar.NewGated(grants, backend)

	mappings, err := mapstore.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	matcher := match.New(store, log.New(logOut, "[match] ", log.LstdFlags))
	manager := syncer.New(store, matcher, mappings, syncer.Config{
		Tolerance:         cfg.Tolerance(),
		DefaultCalendarID: cfg.CalendarID,
		Logger:            log.New(logOut, "[syncer] ", log.LstdFlags),
	})
	reconciler := reconcile.New(manager, mappings, cfg.CalendarID,
		log.New(logOut, "[reconcile] ", log.LstdFlags))

	return &engine{
		cfg:        cfg,
		perms:      grants,
		store:      store,
		mappings:   mappings,
		manager:    manager,
		reconciler: reconciler,
		logWriter:  logCloser,
	}, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (calendar.Store, error) {
	switch cfg.Backend {
	case "icsdir", "":
		return icsdir.Open(cfg.ICSDir)
	case "caldav":
		return caldavstore.Open(ctx, caldavstore.Config{
			Endpoint:     cfg.CalDAV.Endpoint,
			Username:     cfg.CalDAV.Username,
			Password:     cfg.CalDAV.Password,
			CalendarPath: cfg.CalDAV.CalendarPath,
		})
	case "memcal":
		return memcal.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want icsdir, caldav, or memcal)", cfg.Backend)
	}
}

func (e *engine) Close() {
	if err := e.mappings.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close mapping store: %v\n", err)
	}
	if e.logWriter != nil {
		_ = e.logWriter.Close()
	}
}
