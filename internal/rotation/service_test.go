package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListPartners(ctx context.Context, f model.PartnerFilter) ([]model.PartnerAdConfig, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PartnerAdConfig), args.Error(1)
}

func (m *MockStore) GetPartner(ctx context.Context, id string) (*model.PartnerAdConfig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PartnerAdConfig), args.Error(1)
}

func (m *MockStore) RegionalDemand(ctx context.Context, state, region string) (*model.RegionalDemand, error) {
	args := m.Called(ctx, state, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RegionalDemand), args.Error(1)
}

func (m *MockStore) RecordImpressions(ctx context.Context, ids []string, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

func newTestService(st Store) (*Service, *FreshnessTracker) {
	fr := NewFreshnessTracker()
	svc := NewService(st, NewEngine(), sampler.NewSeeded(1), fr, ServiceConfig{DefaultMaxResults: 2})
	svc.nowFunc = func() time.Time { return midMonth }
	return svc, fr
}

func houstonQuery() PlacementQuery {
	return PlacementQuery{Region: "Houston", State: "TX", TradeType: "roofing"}
}

func TestService_PlaceTopRecordsImpressions(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, model.PartnerFilter{
		Region: "Houston", State: "TX", TradeType: "roofing", Status: model.PartnerActive,
	}).Return(threeTierPartners(), nil)
	st.On("RegionalDemand", mock.Anything, "TX", "Houston").
		Return(&model.RegionalDemand{State: "TX", Region: "Houston", DemandIndex: 80}, nil)
	st.On("RecordImpressions", mock.Anything, []string{"premium", "standard"}, midMonth).Return(nil)

	svc, fr := newTestService(st)
	res := svc.Place(context.Background(), houstonQuery())

	require.Len(t, res.TopPartners, 2)
	assert.Equal(t, model.PlacementTop, res.Mode)
	assert.Equal(t, 3, res.TotalEligible)
	assert.InDelta(t, 1.3, res.TopPartners[0].Factors.Demand, 1e-9)

	shown, ok := fr.LastShown("premium")
	require.True(t, ok)
	assert.True(t, shown.Equal(midMonth))
	_, ok = fr.LastShown("free")
	assert.False(t, ok)
	st.AssertExpectations(t)
}

func TestService_PlaceAppliesFreshness(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(threeTierPartners(), nil)
	st.On("RegionalDemand", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	st.On("RecordImpressions", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc, fr := newTestService(st)
	fr.MarkShown("premium", midMonth)

	res := svc.Place(context.Background(), houstonQuery())
	require.NotEmpty(t, res.TopPartners)
	for _, w := range res.TopPartners {
		if w.PartnerID == "premium" {
			assert.InDelta(t, 0.5, w.Factors.Freshness, 1e-9)
		}
	}
}

func TestService_PlaceStoreFailureReturnsEmpty(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	svc, _ := newTestService(st)
	res := svc.Place(context.Background(), houstonQuery())

	assert.NotNil(t, res.TopPartners)
	assert.Empty(t, res.TopPartners)
	assert.Zero(t, res.TotalEligible)
	assert.Equal(t, "Houston", res.Region)
	st.AssertNotCalled(t, "RecordImpressions", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_PlaceDemandFailureUsesNeutralDemand(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(threeTierPartners(), nil)
	st.On("RegionalDemand", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	st.On("RecordImpressions", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("write failed"))

	svc, _ := newTestService(st)
	res := svc.Place(context.Background(), houstonQuery())
	require.Len(t, res.TopPartners, 2)
	assert.InDelta(t, 1.0, res.TopPartners[0].Factors.Demand, 1e-9)
}

func TestService_PlaceRotating(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(threeTierPartners(), nil)
	st.On("RegionalDemand", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	st.On("RecordImpressions", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc, _ := newTestService(st)
	q := houstonQuery()
	q.Mode = model.PlacementRotating
	q.MaxResults = 3

	res := svc.Place(context.Background(), q)
	assert.Equal(t, model.PlacementRotating, res.Mode)
	assert.Len(t, res.TopPartners, 3)
}

func TestService_Pacing(t *testing.T) {
	t.Parallel()

	p := partner("premium", model.TierPremium, 1000, 100)
	st := &MockStore{}
	st.On("GetPartner", mock.Anything, "premium").Return(&p, nil)
	st.On("GetPartner", mock.Anything, "missing").Return(nil, errors.New("not found"))

	svc, _ := newTestService(st)
	bp, err := svc.Pacing(context.Background(), "premium")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, bp.SpendRate, 1e-9)
	assert.False(t, bp.IsOnPace)

	_, err = svc.Pacing(context.Background(), "missing")
	require.Error(t, err)
}

func TestService_Weights(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(threeTierPartners(), nil)
	st.On("RegionalDemand", mock.Anything, "TX", "Houston").Return(nil, errors.New("demand table missing"))

	svc, fr := newTestService(st)
	ws, err := svc.Weights(context.Background(), houstonQuery())
	require.NoError(t, err)
	require.Len(t, ws, 3)
	assert.Equal(t, "premium", ws[0].PartnerID)

	_, ok := fr.LastShown("premium")
	assert.False(t, ok, "weights must not mark partners as shown")
	st.AssertNotCalled(t, "RecordImpressions", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_WeightsStoreFailure(t *testing.T) {
	t.Parallel()

	st := &MockStore{}
	st.On("ListPartners", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	svc, _ := newTestService(st)
	_, err := svc.Weights(context.Background(), houstonQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotation: list partners")
}
