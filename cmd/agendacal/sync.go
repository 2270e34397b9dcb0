package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/showgrid/agendacal/internal/agenda"
	"github.com/showgrid/agendacal/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync <intent-file>",
	Short: "Sync one agenda item into the device calendar",
	Long: `Sync a single agenda item described by a JSON intent file.

The file carries the server-truth snapshot:

  {
    "agenda_item_id": "evt-123",
    "title": "Warehouse Sessions: Opening Night",
    "start": "2026-09-12T20:00:00+02:00",
    "end": "2026-09-12T23:00:00+02:00",
    "venue_name": "Warehouse 9"
  }

Re-running with the same file is a no-op; a changed file updates the
calendar event in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intent, err := agenda.ReadIntentFile(args[0])
		if err != nil {
			return err
		}

		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		action, err := eng.manager.EnsureSynced(cmd.Context(), *intent, eng.cfg.CalendarID)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s: %s\n", ui.RenderSuccess("✓"), intent.AgendaItemID, action)
		return nil
	},
}

var unsyncCmd = &cobra.Command{
	Use:   "unsync <agenda-item-id>",
	Short: "Remove an agenda item from the device calendar",
	Long: `Delete the calendar event representing an agenda item and forget its
mapping. Unsyncing an item that was never synced is a no-op success.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.manager.RemoveSync(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s unsynced %s\n", ui.RenderSuccess("✓"), args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracked sync mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		mappings, err := eng.mappings.All(cmd.Context())
		if err != nil {
			return err
		}
		if len(mappings) == 0 {
			fmt.Println("No tracked items.")
			return nil
		}
		for _, m := range mappings {
			fmt.Printf("%s -> %s %s\n", m.AgendaItemID, m.NativeEventID,
				ui.RenderDim(fmt.Sprintf("(synced %s)", m.LastSyncedAt.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(unsyncCmd)
	rootCmd.AddCommand(statusCmd)
}
