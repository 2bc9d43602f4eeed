package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/importer"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

var (
	importPartnersPath string
	importDemandPath   string
	importSheet        string
	importDryRun       bool
)

var importCmd = &cobra.Command{
	Use:   "import-partners",
	Short: "Import partner ad configurations and regional demand from CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importPartnersPath == "" && importDemandPath == "" {
			return eris.New("one of --file or --demand is required")
		}
		opts := importer.Options{Sheet: importSheet}

		partners, rejected, err := readPartnerFile(cmd, opts)
		if err != nil {
			return err
		}
		demand, rejectedDemand, err := readDemandFile(cmd, opts)
		if err != nil {
			return err
		}
		logRejected("partner", rejected)
		logRejected("demand", rejectedDemand)

		if importDryRun {
			zap.L().Info("dry run, nothing written",
				zap.Int("partners", len(partners)),
				zap.Int("demand_rows", len(demand)),
				zap.Int("rejected", len(rejected)+len(rejectedDemand)),
			)
			return nil
		}

		env, err := initApp(ctx, config.ModeImport)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(partners) > 0 {
			n, err := env.Store.UpsertPartners(ctx, partners)
			if err != nil {
				return eris.Wrap(err, "import partners")
			}
			zap.L().Info("partners imported", zap.Int64("rows", n), zap.String("file", importPartnersPath))
		}
		if len(demand) > 0 {
			n, err := env.Store.UpsertDemand(ctx, demand)
			if err != nil {
				return eris.Wrap(err, "import demand")
			}
			zap.L().Info("regional demand imported", zap.Int64("rows", n), zap.String("file", importDemandPath))
		}
		return nil
	},
}

func readPartnerFile(cmd *cobra.Command, opts importer.Options) ([]model.PartnerAdConfig, []importer.RowError, error) {
	if importPartnersPath == "" {
		return nil, nil, nil
	}
	return importer.ReadPartners(cmd.Context(), importPartnersPath, opts)
}

func readDemandFile(cmd *cobra.Command, opts importer.Options) ([]model.RegionalDemand, []importer.RowError, error) {
	if importDemandPath == "" {
		return nil, nil, nil
	}
	return importer.ReadDemand(cmd.Context(), importDemandPath, opts)
}

func logRejected(kind string, rows []importer.RowError) {
	for _, r := range rows {
		zap.L().Warn("row rejected",
			zap.String("kind", kind),
			zap.Int("line", r.Line),
			zap.String("reason", r.Reason),
		)
	}
}

func init() {
	importCmd.Flags().StringVar(&importPartnersPath, "file", "", "partner sheet (.csv or .xlsx)")
	importCmd.Flags().StringVar(&importDemandPath, "demand", "", "regional demand sheet (.csv or .xlsx)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and report without writing")
	rootCmd.AddCommand(importCmd)
}
