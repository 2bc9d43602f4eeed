package model

import "time"

// WeightFactors is the breakdown of a partner's rotation weight.
type WeightFactors struct {
	Tier             float64 `json:"tier"`
	Budget           float64 `json:"budget"`
	Competitive      float64 `json:"competitive"`
	Demand           float64 `json:"demand"`
	Disaster         float64 `json:"disaster"`
	Freshness        float64 `json:"freshness"`
	TradeAssociation float64 `json:"trade_association"`
}

// Product multiplies all factors together, uncapped.
func (f WeightFactors) Product() float64 {
	return f.Tier * f.Budget * f.Competitive * f.Demand * f.Disaster * f.Freshness * f.TradeAssociation
}

// RotationWeight is the per-request placement weight of one partner. It is
// recomputed on every request and never persisted.
type RotationWeight struct {
	PartnerID    string        `json:"partner_id"`
	Tier         PartnerTier   `json:"tier"`
	Weight       float64       `json:"weight"`
	Factors      WeightFactors `json:"factors"`
	Priority     int           `json:"priority"`
	EstimatedCPC float64       `json:"estimated_cpc"`
}

// PlacementMode selects how partners are chosen from the weighted set.
type PlacementMode string

const (
	// PlacementTop always shows the highest weights first.
	PlacementTop PlacementMode = "top"
	// PlacementRotating draws partners proportionally to weight.
	PlacementRotating PlacementMode = "rotating"
)

// PlacementResult is the ranked set of partners to show for a request.
type PlacementResult struct {
	TopPartners   []RotationWeight `json:"top_partners"`
	TotalEligible int              `json:"total_eligible"`
	Region        string           `json:"region"`
	State         string           `json:"state"`
	TradeType     string           `json:"trade_type,omitempty"`
	Mode          PlacementMode    `json:"mode"`
	Timestamp     time.Time        `json:"timestamp"`
}

// BudgetPacing compares a partner's actual spend to an even pro-rata spend.
type BudgetPacing struct {
	PartnerID             string  `json:"partner_id"`
	DayOfMonth            int     `json:"day_of_month"`
	DaysInMonth           int     `json:"days_in_month"`
	IdealSpendRatio       float64 `json:"ideal_spend_ratio"`
	ActualSpendRatio      float64 `json:"actual_spend_ratio"`
	SpendRate             float64 `json:"spend_rate"`
	IsOnPace              bool    `json:"is_on_pace"`
	RemainingBudget       float64 `json:"remaining_budget"`
	RecommendedDailySpend float64 `json:"recommended_daily_spend"`
	ProjectedMonthEnd     float64 `json:"projected_month_end"`
}
