package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
)

// errCritical makes the command exit non-zero when only archived rules are
// available.
var errCritical = eris.New("analysis chain is critical")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the analyzer chain and print its health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeHealth)
		if err != nil {
			return err
		}
		defer env.Close()

		h := env.Router.Health(ctx)
		if err := printJSON(cmd.OutOrStdout(), h); err != nil {
			return err
		}
		if h.Status == router.StatusCritical {
			cmd.SilenceUsage = true
			return errCritical
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
