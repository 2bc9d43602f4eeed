// Package distribution is a QA harness that certifies the placement weights
// and the weighted sampler together produce the intended long-run exposure.
package distribution

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
)

// Candidate is one weighted entry under test.
type Candidate struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// FromRotationWeights converts engine output into validator candidates.
func FromRotationWeights(ws []model.RotationWeight) []Candidate {
	out := make([]Candidate, len(ws))
	for i, w := range ws {
		out[i] = Candidate{ID: w.PartnerID, Weight: w.Weight}
	}
	return out
}

// Config controls a validation run.
type Config struct {
	Iterations        int `json:"iterations"`
	SlotsPerIteration int `json:"slots_per_iteration"`
}

// DefaultConfig draws one slot per iteration so that selection probability
// is exactly weight-proportional.
func DefaultConfig() Config {
	return Config{Iterations: 1000, SlotsPerIteration: 1}
}

func (c Config) withDefaults() Config {
	if c.Iterations <= 0 {
		c.Iterations = 1000
	}
	if c.SlotsPerIteration <= 0 {
		c.SlotsPerIteration = 1
	}
	return c
}

// CandidateResult compares expected and observed exposure for one candidate.
type CandidateResult struct {
	ID           string  `json:"id"`
	Weight       float64 `json:"weight"`
	Observed     int     `json:"observed"`
	Expected     float64 `json:"expected"`
	ExpectedPct  float64 `json:"expected_pct"`
	ActualPct    float64 `json:"actual_pct"`
	Contribution float64 `json:"contribution"`
}

// TestSummary is the outcome of a validation run.
type TestSummary struct {
	Passed            bool              `json:"passed"`
	ChiSquare         float64           `json:"chi_square"`
	Threshold         float64           `json:"threshold"`
	DegreesOfFreedom  int               `json:"degrees_of_freedom"`
	Iterations        int               `json:"iterations"`
	SlotsPerIteration int               `json:"slots_per_iteration"`
	TotalSelections   int               `json:"total_selections"`
	Candidates        []CandidateResult `json:"candidates"`
	Message           string            `json:"message,omitempty"`
	RanAt             time.Time         `json:"ran_at"`
}

// Validate draws cfg.Iterations rounds of cfg.SlotsPerIteration candidates,
// tallies selections and compares them with weight-proportional
// expectations. An empty or zero-weight set fails with a message. Slots are
// capped at the number of positive-weight candidates, so a zero-weight
// candidate is never drawn.
func Validate(s *sampler.Sampler, candidates []Candidate, cfg Config) TestSummary {
	cfg = cfg.withDefaults()
	sum := TestSummary{
		Iterations:        cfg.Iterations,
		SlotsPerIteration: cfg.SlotsPerIteration,
		RanAt:             time.Now().UTC(),
	}

	weights := make([]float64, len(candidates))
	positive := 0
	for i, c := range candidates {
		if c.Weight > 0 {
			weights[i] = c.Weight
			positive++
		}
	}
	if positive == 0 {
		sum.Message = "no eligible candidates to validate"
		return sum
	}

	var capped string
	if sum.SlotsPerIteration > positive {
		capped = fmt.Sprintf("slots per iteration capped at %d positive-weight candidates", positive)
		sum.SlotsPerIteration = positive
	}

	counts := make([]int, len(candidates))
	for i := 0; i < sum.Iterations; i++ {
		for _, idx := range sampler.Indices(s, weights, sum.SlotsPerIteration) {
			counts[idx]++
		}
	}

	summarize(&sum, candidates, counts)
	if capped != "" {
		if sum.Message != "" {
			sum.Message += "; "
		}
		sum.Message += capped
	}
	return sum
}

// summarize fills the chi-square fields of sum from per-candidate counts.
// Degrees of freedom count positive-weight candidates only: a zero-weight
// candidate has no expected share and adds no term. A zero-weight candidate
// that was selected anyway fails the run with the largest finite statistic,
// which keeps the summary JSON-encodable.
func summarize(sum *TestSummary, candidates []Candidate, counts []int) {
	var total float64
	positive := 0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
			positive++
		}
	}
	selections := 0
	for _, n := range counts {
		selections += n
	}

	sum.TotalSelections = selections
	sum.DegreesOfFreedom = positive - 1
	sum.Threshold = CriticalValue(sum.DegreesOfFreedom)
	sum.Candidates = make([]CandidateResult, len(candidates))
	sum.Message = ""

	var stat float64
	var unexpected []string
	for i, c := range candidates {
		share := 0.0
		if c.Weight > 0 {
			share = c.Weight / total
		}
		r := CandidateResult{
			ID:          c.ID,
			Weight:      c.Weight,
			Observed:    counts[i],
			Expected:    float64(selections) * share,
			ExpectedPct: share * 100,
		}
		if selections > 0 {
			r.ActualPct = float64(counts[i]) / float64(selections) * 100
		}
		switch {
		case r.Expected > 0:
			d := float64(r.Observed) - r.Expected
			r.Contribution = d * d / r.Expected
			stat += r.Contribution
		case r.Observed > 0:
			r.Contribution = math.MaxFloat64
			unexpected = append(unexpected, c.ID)
		}
		sum.Candidates[i] = r
	}

	if len(unexpected) > 0 {
		sum.ChiSquare = math.MaxFloat64
		sum.Passed = false
		sum.Message = fmt.Sprintf("zero-weight candidates selected: %s", strings.Join(unexpected, ", "))
		return
	}

	sum.ChiSquare = stat
	sum.Passed = stat <= sum.Threshold
	if !sum.Passed {
		sum.Message = fmt.Sprintf("chi-square %.3f exceeds %.3f (df=%d)", stat, sum.Threshold, sum.DegreesOfFreedom)
	}
}

// RepeatedSummary aggregates independent validation trials.
type RepeatedSummary struct {
	Trials        int           `json:"trials"`
	Passed        int           `json:"passed"`
	PassRate      float64       `json:"pass_rate"`
	MeanChiSquare float64       `json:"mean_chi_square"`
	Threshold     float64       `json:"threshold"`
	Runs          []TestSummary `json:"runs,omitempty"`
}

// RunRepeated runs trials independent validations concurrently, trial i
// seeded with seed+i. The chi-square check is statistical, so callers judge
// the pass rate instead of any single run.
func RunRepeated(ctx context.Context, candidates []Candidate, cfg Config, trials int, seed uint64) (*RepeatedSummary, error) {
	if trials <= 0 {
		return nil, eris.New("distribution: trials must be positive")
	}

	runs := make([]TestSummary, trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < trials; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs[i] = Validate(sampler.NewSeeded(seed+uint64(i)), candidates, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "distribution: repeated trials")
	}

	out := &RepeatedSummary{Trials: trials, Runs: runs}
	var sumStat float64
	for _, r := range runs {
		if r.Passed {
			out.Passed++
		}
		sumStat += r.ChiSquare
		out.Threshold = r.Threshold
	}
	out.PassRate = float64(out.Passed) / float64(trials)
	out.MeanChiSquare = sumStat / float64(trials)

	zap.L().Debug("distribution: repeated trials complete",
		zap.Int("trials", trials),
		zap.Float64("pass_rate", out.PassRate),
		zap.Float64("mean_chi_square", out.MeanChiSquare),
	)
	return out, nil
}
