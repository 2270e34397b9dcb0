package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/showgrid/agendacal/internal/config"
	"github.com/showgrid/agendacal/internal/perms"
	"github.com/showgrid/agendacal/internal/ui"
)

var grantRevoke bool
var grantYes bool

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant or revoke calendar access",
	Long: `Manage the calendar permission pair (read+write).

The engine refuses every calendar operation until both grants are held,
and treats a revoked permission as "ask the user", never as "the events
are gone". Grants persist in the state directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, grants, err := loadGrants()
		if err != nil {
			return err
		}

		if grantRevoke {
			if err := grants.Revoke(); err != nil {
				return err
			}
			fmt.Printf("%s calendar access revoked\n", ui.RenderSuccess("✓"))
			return nil
		}

		if grants.Granted() {
			fmt.Println("Calendar access already granted.")
			return nil
		}

		confirmed := grantYes
		if !confirmed {
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title("Allow agendacal to read and write your calendar?").
					Description("Both permissions are requested together; a partial grant counts as denied.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}
		if !confirmed {
			fmt.Println("Calendar access not granted.")
			return nil
		}

		if err := grants.Request(); err != nil {
			return err
		}
		fmt.Printf("%s calendar access granted (%s)\n", ui.RenderSuccess("✓"), ui.RenderDim(cfg.GrantPath()))
		return nil
	},
}

func loadGrants() (*config.Config, *perms.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	grants, err := perms.Open(cfg.GrantPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, grants, nil
}

func init() {
	grantCmd.Flags().BoolVar(&grantRevoke, "revoke", false, "revoke both grants")
	grantCmd.Flags().BoolVarP(&grantYes, "yes", "y", false, "grant without prompting")
	rootCmd.AddCommand(grantCmd)
}
