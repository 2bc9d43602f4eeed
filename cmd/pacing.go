package main

import (
	"github.com/spf13/cobra"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
)

var pacingPartnerID string

var pacingCmd = &cobra.Command{
	Use:   "pacing",
	Short: "Show a partner's monthly budget pacing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModePacing)
		if err != nil {
			return err
		}
		defer env.Close()

		bp, err := env.Placement.Pacing(ctx, pacingPartnerID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), bp)
	},
}

func init() {
	pacingCmd.Flags().StringVar(&pacingPartnerID, "partner", "", "partner ID (required)")
	_ = pacingCmd.MarkFlagRequired("partner")
	rootCmd.AddCommand(pacingCmd)
}
