package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
)

var migrateSkipSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations and seed national prices from the rule pack",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// initApp applies migrations when it opens the store.
		env, err := initApp(ctx, config.ModeMigrate)
		if err != nil {
			return err
		}
		defer env.Close()

		if migrateSkipSeed {
			zap.L().Info("migrations applied")
			return nil
		}

		prices := env.Rules.PriceTable()
		n, err := env.Store.UpsertPrices(ctx, prices)
		if err != nil {
			return eris.Wrap(err, "seed prices")
		}
		zap.L().Info("migrations applied, prices seeded", zap.Int64("rows", n))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSkipSeed, "skip-seed", false, "only apply migrations")
	rootCmd.AddCommand(migrateCmd)
}
