package rotation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/metrics"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
)

// Store is the partner data the placement service reads and writes.
type Store interface {
	ListPartners(ctx context.Context, f model.PartnerFilter) ([]model.PartnerAdConfig, error)
	GetPartner(ctx context.Context, id string) (*model.PartnerAdConfig, error)
	RegionalDemand(ctx context.Context, state, region string) (*model.RegionalDemand, error)
	RecordImpressions(ctx context.Context, partnerIDs []string, at time.Time) error
}

// PlacementQuery is an inbound "show partners" request.
type PlacementQuery struct {
	Region     string              `json:"region"`
	State      string              `json:"state"`
	TradeType  string              `json:"trade_type,omitempty"`
	MaxResults int                 `json:"max_results,omitempty"`
	Mode       model.PlacementMode `json:"mode,omitempty"`
}

// ServiceConfig tunes the placement service.
type ServiceConfig struct {
	DefaultMaxResults int
	DefaultMode       model.PlacementMode
}

// Service loads partner snapshots, runs the engine and records what was
// shown. It never returns an error: store failures yield an empty result.
type Service struct {
	store     Store
	engine    *Engine
	sampler   *sampler.Sampler
	freshness *FreshnessTracker
	cfg       ServiceConfig
	nowFunc   func() time.Time
	log       *zap.Logger
}

// NewService creates a placement service.
func NewService(store Store, engine *Engine, s *sampler.Sampler, freshness *FreshnessTracker, cfg ServiceConfig) *Service {
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 3
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = model.PlacementTop
	}
	return &Service{
		store:     store,
		engine:    engine,
		sampler:   s,
		freshness: freshness,
		cfg:       cfg,
		nowFunc:   time.Now,
		log:       zap.L().With(zap.String("component", "rotation")),
	}
}

// Place answers a placement query.
func (s *Service) Place(ctx context.Context, q PlacementQuery) model.PlacementResult {
	now := s.nowFunc()
	if q.MaxResults <= 0 {
		q.MaxResults = s.cfg.DefaultMaxResults
	}
	if q.Mode == "" {
		q.Mode = s.cfg.DefaultMode
	}
	req := Request{Region: q.Region, State: q.State, TradeType: q.TradeType, Now: now}

	partners, err := s.store.ListPartners(ctx, model.PartnerFilter{
		Region:    q.Region,
		State:     q.State,
		TradeType: q.TradeType,
		Status:    model.PartnerActive,
	})
	if err != nil {
		s.log.Warn("rotation: list partners failed", zap.Error(err),
			zap.String("state", q.State), zap.String("region", q.Region))
		return s.empty(req, q.Mode)
	}

	demand, err := s.store.RegionalDemand(ctx, q.State, q.Region)
	if err != nil {
		// Demand only scales weights; place with neutral demand.
		s.log.Warn("rotation: regional demand lookup failed", zap.Error(err))
		demand = nil
	}
	req.Demand = demand

	partners = s.freshness.Overlay(partners)

	var res model.PlacementResult
	switch q.Mode {
	case model.PlacementRotating:
		res = s.engine.SelectRotating(partners, req, q.MaxResults, s.sampler)
	default:
		res = s.engine.SelectForPlacement(partners, req, q.MaxResults)
	}

	metrics.Placements.WithLabelValues(string(res.Mode)).Inc()
	metrics.PlacementEligible.Observe(float64(res.TotalEligible))

	if len(res.TopPartners) == 0 {
		return res
	}
	ids := make([]string, 0, len(res.TopPartners))
	for _, w := range res.TopPartners {
		s.freshness.MarkShown(w.PartnerID, now)
		ids = append(ids, w.PartnerID)
	}
	if err := s.store.RecordImpressions(ctx, ids, now); err != nil {
		s.log.Warn("rotation: record impressions failed", zap.Error(err), zap.Strings("partners", ids))
	}
	return res
}

// Weights returns the weighted eligible set for q without recording any
// impression. The distribution QA endpoint validates against it.
func (s *Service) Weights(ctx context.Context, q PlacementQuery) ([]model.RotationWeight, error) {
	req := Request{Region: q.Region, State: q.State, TradeType: q.TradeType, Now: s.nowFunc()}
	partners, err := s.store.ListPartners(ctx, model.PartnerFilter{
		Region:    q.Region,
		State:     q.State,
		TradeType: q.TradeType,
		Status:    model.PartnerActive,
	})
	if err != nil {
		return nil, eris.Wrap(err, "rotation: list partners")
	}
	demand, err := s.store.RegionalDemand(ctx, q.State, q.Region)
	if err != nil {
		s.log.Warn("rotation: regional demand lookup failed", zap.Error(err))
		demand = nil
	}
	req.Demand = demand
	return s.engine.CalculateWeights(s.freshness.Overlay(partners), req), nil
}

// Pacing loads one partner and computes its budget pacing as of now.
func (s *Service) Pacing(ctx context.Context, partnerID string) (*model.BudgetPacing, error) {
	p, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, eris.Wrapf(err, "rotation: load partner %s", partnerID)
	}
	bp := CalculateBudgetPacing(*p, s.nowFunc())
	return &bp, nil
}

func (s *Service) empty(req Request, mode model.PlacementMode) model.PlacementResult {
	res := newResult(req, 0, mode)
	res.TopPartners = []model.RotationWeight{}
	metrics.Placements.WithLabelValues(string(mode)).Inc()
	return res
}
