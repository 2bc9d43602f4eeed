package model

import "time"

// PartnerTier is a partner's subscription level.
type PartnerTier string

const (
	TierFree         PartnerTier = "free"
	TierStandard     PartnerTier = "standard"
	TierPremium      PartnerTier = "premium"
	TierBuildYourOwn PartnerTier = "build_your_own"
)

// Valid reports whether t is a known tier.
func (t PartnerTier) Valid() bool {
	switch t {
	case TierFree, TierStandard, TierPremium, TierBuildYourOwn:
		return true
	}
	return false
}

// PartnerStatus is the lifecycle state of a partner's ad configuration.
type PartnerStatus string

const (
	PartnerActive    PartnerStatus = "active"
	PartnerPaused    PartnerStatus = "paused"
	PartnerExhausted PartnerStatus = "exhausted"
)

// PartnerAdConfig is a snapshot of a partner's placement configuration. It is
// owned by the partner store; the allocator only derives LastShownAt.
type PartnerAdConfig struct {
	PartnerID        string        `json:"partner_id"`
	Name             string        `json:"name,omitempty"`
	TradeType        string        `json:"trade_type"`
	Tier             PartnerTier   `json:"tier"`
	MonthlyBudget    float64       `json:"monthly_budget"`
	BudgetSpent      float64       `json:"budget_spent"`
	Regions          []string      `json:"regions"`
	State            string        `json:"state"`
	TradeAssociation bool          `json:"trade_association"`
	Status           PartnerStatus `json:"status"`
	LastShownAt      *time.Time    `json:"last_shown_at,omitempty"`
	Impressions      int64         `json:"impressions"`
	Clicks           int64         `json:"clicks"`
}

// RemainingBudget returns the unspent budget, never negative.
func (p PartnerAdConfig) RemainingBudget() float64 {
	if r := p.MonthlyBudget - p.BudgetSpent; r > 0 {
		return r
	}
	return 0
}

// RegionalDemand is the demand signal for a state/region pair.
type RegionalDemand struct {
	State             string  `json:"state"`
	Region            string  `json:"region"`
	DemandIndex       float64 `json:"demand_index"`
	DisasterDeclared  bool    `json:"disaster_declared"`
	CompetitorCount   int     `json:"competitor_count"`
	BaseCPCMultiplier float64 `json:"base_cpc_multiplier"`
}

// PartnerFilter narrows a partner store query. Empty fields match anything.
type PartnerFilter struct {
	Region    string
	State     string
	TradeType string
	Status    PartnerStatus
}
