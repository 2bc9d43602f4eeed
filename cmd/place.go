package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/rotation"
)

var placeQuery rotation.PlacementQuery

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Select partners for a placement",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mode, _ := cmd.Flags().GetString("mode")
		placeQuery.Mode = model.PlacementMode(mode)
		if err := validatePlacementQuery(placeQuery); err != nil {
			return err
		}

		env, err := initApp(ctx, config.ModePlace)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Placement.Place(ctx, placeQuery)
		zap.L().Info("placement complete",
			zap.String("mode", string(res.Mode)),
			zap.Int("eligible", res.TotalEligible),
			zap.Int("shown", len(res.TopPartners)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	placeCmd.Flags().StringVar(&placeQuery.State, "state", "", "two-letter state code (required)")
	placeCmd.Flags().StringVar(&placeQuery.Region, "region", "", "region within the state")
	placeCmd.Flags().StringVar(&placeQuery.TradeType, "trade", "", "trade type filter, e.g. roofing")
	placeCmd.Flags().IntVar(&placeQuery.MaxResults, "max", 0, "partners to return (default from config)")
	placeCmd.Flags().String("mode", "", "top or rotating (default from config)")
	_ = placeCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(placeCmd)
}
