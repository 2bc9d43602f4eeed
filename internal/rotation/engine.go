// Package rotation computes partner placement weights and decides which
// partners are shown for a request.
package rotation

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
)

// Weight formula constants. Downstream revenue and fairness depend on this
// exact arithmetic; change them only with a pricing decision.
const (
	MaxWeightCap = 10.0

	minBudgetFactor  = 0.3
	maxBudgetFactor  = 2.0
	freeBudgetFactor = 0.3
	monthEndBoost    = 1.5
	monthEndElapsed  = 0.85
	monthEndUnspent  = 0.30

	maxCompetitive = 2.0

	highDemandIndex  = 70.0
	highDemandBonus  = 1.3
	midDemandIndex   = 50.0
	midDemandBonus   = 1.1
	disasterPremium  = 1.8
	disasterAnyTier  = 1.2
	freshnessFloor   = 0.5
	freshnessWindow  = 15 * time.Minute
	tradeAssocFactor = 0.5

	baseCPC = 2.50
)

var tierMultipliers = map[model.PartnerTier]float64{
	model.TierPremium:      4.0,
	model.TierStandard:     2.0,
	model.TierBuildYourOwn: 1.5,
	model.TierFree:         0.5,
}

// TierMultiplier returns the base weight for a tier. Unknown tiers weigh as free.
func TierMultiplier(t model.PartnerTier) float64 {
	if m, ok := tierMultipliers[t]; ok {
		return m
	}
	return tierMultipliers[model.TierFree]
}

// Request is the placement context for one weight computation.
type Request struct {
	Region    string
	State     string
	TradeType string
	// Demand is the regional demand snapshot; nil means neutral demand.
	Demand *model.RegionalDemand
	Now    time.Time
}

// Engine computes rotation weights. It holds no mutable state and is safe
// for concurrent use.
type Engine struct{}

// NewEngine returns a rotation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Eligible reports whether p may be shown for req.
func (e *Engine) Eligible(p model.PartnerAdConfig, req Request) bool {
	if p.Status != model.PartnerActive {
		return false
	}
	if p.Tier != model.TierFree && p.BudgetSpent >= p.MonthlyBudget {
		return false
	}
	if !strings.EqualFold(p.State, req.State) {
		return false
	}
	if !slices.ContainsFunc(p.Regions, func(r string) bool { return strings.EqualFold(r, req.Region) }) {
		return false
	}
	if req.TradeType != "" && !strings.EqualFold(p.TradeType, req.TradeType) {
		return false
	}
	return true
}

// CalculateWeights filters partners for req and returns their weights sorted
// descending, ties kept in input order, with 1-based priorities. An empty
// result means no partner is eligible.
func (e *Engine) CalculateWeights(partners []model.PartnerAdConfig, req Request) []model.RotationWeight {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	eligible := make([]model.PartnerAdConfig, 0, len(partners))
	for _, p := range partners {
		if e.Eligible(p, req) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return []model.RotationWeight{}
	}

	avg := averagePayingBudget(eligible)
	elapsed := monthElapsed(req.Now)

	out := make([]model.RotationWeight, 0, len(eligible))
	for _, p := range eligible {
		f := model.WeightFactors{
			Tier:             TierMultiplier(p.Tier),
			Budget:           budgetFactor(p, avg, elapsed),
			Competitive:      competitivePosition(p, avg, len(eligible)),
			Demand:           demandBonus(req.Demand),
			Disaster:         disasterBonus(p.Tier, req.Demand),
			Freshness:        freshnessPenalty(p.LastShownAt, req.Now),
			TradeAssociation: tradeAssociationPenalty(p.TradeAssociation),
		}
		out = append(out, model.RotationWeight{
			PartnerID:    p.PartnerID,
			Tier:         p.Tier,
			Weight:       min(f.Product(), MaxWeightCap),
			Factors:      f,
			EstimatedCPC: estimateCPC(f, req.Demand),
		})
	}

	slices.SortStableFunc(out, func(a, b model.RotationWeight) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out
}

// SelectForPlacement returns the maxResults highest-weighted partners.
func (e *Engine) SelectForPlacement(partners []model.PartnerAdConfig, req Request, maxResults int) model.PlacementResult {
	weights := e.CalculateWeights(partners, req)
	res := newResult(req, len(weights), model.PlacementTop)
	if maxResults > 0 && len(weights) > maxResults {
		weights = weights[:maxResults]
	}
	res.TopPartners = weights
	return res
}

// SelectRotating draws up to maxResults partners proportionally to weight.
// Drawn partners are returned in draw order with priorities renumbered.
func (e *Engine) SelectRotating(partners []model.PartnerAdConfig, req Request, maxResults int, s *sampler.Sampler) model.PlacementResult {
	weights := e.CalculateWeights(partners, req)
	res := newResult(req, len(weights), model.PlacementRotating)
	if maxResults <= 0 {
		maxResults = len(weights)
	}
	picked := sampler.Select(s, weights, func(w model.RotationWeight) float64 { return w.Weight }, maxResults)
	for i := range picked {
		picked[i].Priority = i + 1
	}
	res.TopPartners = picked
	if res.TopPartners == nil {
		res.TopPartners = []model.RotationWeight{}
	}
	return res
}

func newResult(req Request, eligible int, mode model.PlacementMode) model.PlacementResult {
	ts := req.Now
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.PlacementResult{
		TotalEligible: eligible,
		Region:        req.Region,
		State:         req.State,
		TradeType:     req.TradeType,
		Mode:          mode,
		Timestamp:     ts.UTC(),
	}
}

func isPaying(p model.PartnerAdConfig) bool {
	return p.Tier != model.TierFree && p.MonthlyBudget > 0
}

func averagePayingBudget(ps []model.PartnerAdConfig) float64 {
	var sum float64
	n := 0
	for _, p := range ps {
		if isPaying(p) {
			sum += p.MonthlyBudget
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func budgetFactor(p model.PartnerAdConfig, avg, elapsed float64) float64 {
	if !isPaying(p) || avg <= 0 {
		return freeBudgetFactor
	}
	f := min(max(p.MonthlyBudget/avg, minBudgetFactor), maxBudgetFactor)
	if elapsed > monthEndElapsed && p.RemainingBudget()/p.MonthlyBudget > monthEndUnspent {
		f *= monthEndBoost
	}
	return f
}

func competitivePosition(p model.PartnerAdConfig, avg float64, competitors int) float64 {
	if !isPaying(p) || avg <= 0 || competitors == 0 {
		return 1.0
	}
	return min(maxCompetitive, 1+p.MonthlyBudget/(avg*float64(competitors)))
}

func demandBonus(d *model.RegionalDemand) float64 {
	switch {
	case d == nil:
		return 1.0
	case d.DemandIndex > highDemandIndex:
		return highDemandBonus
	case d.DemandIndex > midDemandIndex:
		return midDemandBonus
	default:
		return 1.0
	}
}

func disasterBonus(t model.PartnerTier, d *model.RegionalDemand) float64 {
	switch {
	case d == nil || !d.DisasterDeclared:
		return 1.0
	case t == model.TierPremium:
		return disasterPremium
	default:
		return disasterAnyTier
	}
}

// freshnessPenalty rises linearly from 0.5 at the moment a partner is shown
// to 1.0 once the window has passed. Future timestamps count as just shown.
func freshnessPenalty(last *time.Time, now time.Time) float64 {
	if last == nil || last.IsZero() {
		return 1.0
	}
	since := max(now.Sub(*last), 0)
	if since >= freshnessWindow {
		return 1.0
	}
	return freshnessFloor + (1-freshnessFloor)*float64(since)/float64(freshnessWindow)
}

func tradeAssociationPenalty(assoc bool) float64 {
	if assoc {
		return tradeAssocFactor
	}
	return 1.0
}

func estimateCPC(f model.WeightFactors, d *model.RegionalDemand) float64 {
	mult := 1.0
	if d != nil && d.BaseCPCMultiplier > 0 {
		mult = d.BaseCPCMultiplier
	}
	return baseCPC * mult * f.Demand * f.Disaster
}

// monthElapsed is the fraction of the calendar month covered by now's day.
func monthElapsed(now time.Time) float64 {
	return float64(now.Day()) / float64(daysInMonth(now))
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
