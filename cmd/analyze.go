package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

var (
	analyzeFile     string
	analyzeTextFile string
	analyzeZip      string
	analyzeCarrier  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit a claim through the analyzer chain",
	Long:  "Reads a claim as JSON (--file) or as raw estimate text (--text-file) and prints the audit result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := loadClaim(cmd)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Router.Analyze(ctx, in)
		zap.L().Info("analysis complete",
			zap.String("version", res.Version),
			zap.Bool("success", res.Success),
			zap.Float64("confidence", res.Confidence),
		)

		if env.Store != nil && cfg.Router.SaveAudits {
			if err := env.Store.SaveAudit(ctx, res); err != nil {
				zap.L().Warn("save audit failed", zap.String("audit_id", res.ID), zap.Error(err))
			}
		}

		return printJSON(cmd.OutOrStdout(), res)
	},
}

func loadClaim(cmd *cobra.Command) (model.ClaimAuditInput, error) {
	var in model.ClaimAuditInput
	switch {
	case analyzeFile != "":
		data, err := readInput(cmd.InOrStdin(), analyzeFile)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, eris.Wrap(err, "parse claim json")
		}
	case analyzeTextFile != "":
		data, err := readInput(cmd.InOrStdin(), analyzeTextFile)
		if err != nil {
			return in, err
		}
		in.DocumentText = string(data)
	default:
		return in, eris.New("one of --file or --text-file is required")
	}
	if analyzeZip != "" {
		in.ZipCode = analyzeZip
	}
	if analyzeCarrier != "" {
		in.CarrierName = analyzeCarrier
	}
	return in, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "claim JSON file, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeTextFile, "text-file", "", "raw estimate text file, or - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeZip, "zip", "", "property ZIP code (overrides the claim)")
	analyzeCmd.Flags().StringVar(&analyzeCarrier, "carrier", "", "insurance carrier name (overrides the claim)")
	analyzeCmd.MarkFlagsMutuallyExclusive("file", "text-file")
	rootCmd.AddCommand(analyzeCmd)
}
