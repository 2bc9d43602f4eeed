package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/distribution"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/rotation"
)

var (
	validateWeights    string
	validateQuery      rotation.PlacementQuery
	validateTrials     int
	validateIterations int
	validateSlots      int
	validateSeed       uint64
	validateUpload     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Chi-square check that sampled exposure matches placement weights",
	Long: "Validates either explicit weights (--weights id=w,...) or the live weighted set " +
		"for a placement (--state, --region, --trade). Runs --trials independently seeded trials.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, config.ModeValidate)
		if err != nil {
			return err
		}
		defer env.Close()

		var candidates []distribution.Candidate
		switch {
		case validateWeights != "":
			candidates, err = parseWeights(validateWeights)
			if err != nil {
				return err
			}
		case validateQuery.State != "":
			if env.Placement == nil {
				return eris.New("store.database_url is required to validate a live placement")
			}
			ws, err := env.Placement.Weights(ctx, validateQuery)
			if err != nil {
				return err
			}
			candidates = distribution.FromRotationWeights(ws)
		default:
			return eris.New("one of --weights or --state is required")
		}

		vcfg := distribution.Config{
			Iterations:        firstPositive(validateIterations, cfg.Validator.Iterations),
			SlotsPerIteration: firstPositive(validateSlots, cfg.Validator.SlotsPerIteration),
		}
		trials := firstPositive(validateTrials, cfg.Validator.Trials)
		seed := validateSeed
		if !cmd.Flags().Changed("seed") {
			seed = cfg.Validator.Seed
		}

		summary, err := distribution.RunRepeated(ctx, candidates, vcfg, trials, seed)
		if err != nil {
			return err
		}
		zap.L().Info("distribution validation complete",
			zap.Int("candidates", len(candidates)),
			zap.Int("trials", summary.Trials),
			zap.Float64("pass_rate", summary.PassRate),
			zap.Float64("threshold", summary.Threshold),
		)

		if validateUpload {
			if env.Reports == nil {
				return eris.New("reports.endpoint is required for --upload")
			}
			if err := env.Reports.EnsureBucket(ctx); err != nil {
				return err
			}
			key, err := env.Reports.Save(ctx, reportKindQA, summary)
			if err != nil {
				return err
			}
			zap.L().Info("validation report saved", zap.String("key", key))
		}

		return printJSON(cmd.OutOrStdout(), summary)
	},
}

// parseWeights parses "id=weight" pairs separated by commas.
func parseWeights(s string) ([]distribution.Candidate, error) {
	var out []distribution.Candidate
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, w, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, eris.Errorf("invalid weight %q, want id=weight", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil || weight < 0 {
			return nil, eris.Errorf("invalid weight for %s: %q", id, w)
		}
		out = append(out, distribution.Candidate{ID: strings.TrimSpace(id), Weight: weight})
	}
	if len(out) == 0 {
		return nil, eris.New("no weights given")
	}
	return out, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateWeights, "weights", "", "explicit candidates, e.g. premium=2.4,standard=1.2,free=0.6")
	f.StringVar(&validateQuery.State, "state", "", "validate the live weighted set for this state")
	f.StringVar(&validateQuery.Region, "region", "", "region for --state")
	f.StringVar(&validateQuery.TradeType, "trade", "", "trade type for --state")
	f.IntVar(&validateTrials, "trials", 0, "independent seeded trials (default from config)")
	f.IntVar(&validateIterations, "iterations", 0, "draws per trial (default from config)")
	f.IntVar(&validateSlots, "slots", 0, "slots per draw (default from config)")
	f.Uint64Var(&validateSeed, "seed", 0, "base seed; trial i uses seed+i (default from config)")
	f.BoolVar(&validateUpload, "upload", false, "upload the summary to report storage")
	validateCmd.MarkFlagsMutuallyExclusive("weights", "state")
	rootCmd.AddCommand(validateCmd)
}
