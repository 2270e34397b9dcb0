package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/showgrid/agendacal/internal/agenda"
	"github.com/showgrid/agendacal/internal/ui"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one full reconciliation pass",
	Long: `Reconcile all tracked mappings against the current agenda.

This performs a full pass:
  1. Loads the engaged agenda items from the agenda directory
  2. Ensures every engaged item is synced (healing drifted or deleted
     native events along the way)
  3. Removes calendar events for items no longer engaged
  4. Writes the install marker on a fresh install`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		source := agenda.NewDir(eng.cfg.AgendaDir, log.New(os.Stderr, "[agenda] ", log.LstdFlags))
		engaged, err := source.EngagedItems(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s Reconciling %d engaged items...\n", ui.RenderAccent("🔄"), len(engaged))
		start := time.Now()

		summary, err := eng.reconciler.Run(cmd.Context(), engaged)
		if err != nil {
			return err
		}

		fmt.Printf("%s Done in %s: created=%d updated=%d healed=%d recreated=%d removed=%d unchanged=%d failed=%d\n",
			ui.RenderSuccess("✓"), time.Since(start).Round(time.Millisecond),
			summary.Created, summary.Updated, summary.Healed, summary.Recreated,
			summary.Removed, summary.Unchanged, summary.Failed)

		if summary.Failed > 0 {
			fmt.Println(ui.RenderDim("Failed items retry on the next pass."))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
