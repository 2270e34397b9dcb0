package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/showgrid/agendacal/internal/ui"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List device calendars available as sync targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		cals, err := eng.store.Calendars(cmd.Context())
		if err != nil {
			return err
		}
		if len(cals) == 0 {
			fmt.Println("No calendars found.")
			return nil
		}

		for _, c := range cals {
			marker := " "
			if c.Primary {
				marker = ui.RenderAccent("*")
			}
			line := fmt.Sprintf("%s %s", marker, c.Name)
			if c.AccountName != "" {
				line += ui.RenderDim(fmt.Sprintf(" (%s)", c.AccountName))
			}
			fmt.Println(line)
			fmt.Println(ui.RenderDim("    id: " + c.ID))
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <agenda-item-id>",
	Short: "Show the calendar date for a synced agenda item",
	Long: `Look up the start date of the native event mapped to an agenda item,
for deep-linking into the calendar app at the right day. Prints nothing
useful when the item is unsynced or the event is gone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer eng.Close()

		start, err := eng.manager.EventStart(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if start == nil {
			fmt.Printf("%s is not synced to the calendar\n", args[0])
			return nil
		}
		fmt.Println(start.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(openCmd)
}
