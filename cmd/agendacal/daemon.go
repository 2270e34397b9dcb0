package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/showgrid/agendacal/internal/agenda"
	"github.com/showgrid/agendacal/internal/autosync"
	"github.com/showgrid/agendacal/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the always-on sync daemon",
	Long: `Run the sync engine in the foreground until interrupted.

The daemon reconciles on start, on the configured cron schedule, and
whenever the local calendar directory changes underneath it, and keeps
the push subscription alive so server-side edits and deletes apply as
they arrive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, err := buildEngine(ctx, true)
		if err != nil {
			return err
		}
		defer eng.Close()

		source := agenda.NewDir(eng.cfg.AgendaDir, nil)

		autoCfg := autosync.DefaultConfig()
		autoCfg.PushURL = eng.cfg.PushURL
		autoCfg.CalendarID = eng.cfg.CalendarID
		auto := autosync.New(eng.manager, autoCfg)

		cfg := daemon.DefaultConfig()
		cfg.Schedule = eng.cfg.ReconcileSchedule
		if eng.cfg.Backend == "" || eng.cfg.Backend == "icsdir" {
			cfg.WatchDir = eng.cfg.ICSDir
		}

		d, err := daemon.New(source, eng.reconciler, auto, cfg)
		if err != nil {
			return err
		}

		log.Printf("agendacal daemon starting (state dir %s)", eng.cfg.StateDir)
		if err := d.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
