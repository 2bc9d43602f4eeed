package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Laminated comp shingles":    "roofing",
		"Seamless gutter - aluminum": "gutters",
		"Ice & water shield":         "roofing",
		"Vinyl siding":               "siding",
		"1/2\" drywall hung & taped": "drywall",
		"Interior paint - 2 coats":   "painting",
		"Haul debris":                "cleanup",
		"Permit fee":                 "general",
	}
	for desc, want := range tests {
		assert.Equal(t, want, Categorize(desc), desc)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line  string
		ok    bool
		desc  string
		qty   float64
		unit  string
		price float64
	}{
		{"Laminated shingles 24.5 SQ $6,125.00", true, "Laminated shingles", 24.5, "SQ", 6125},
		{"Drip edge - 180 LF @ 2.10 = 378.00", true, "Drip edge", 180, "LF", 378},
		{"3. Ice & water shield $450.00", true, "Ice & water shield", 1, "", 450},
		{"Gutter guard: 120.50", true, "Gutter guard", 1, "", 120.50},
		{"Total $12,000.00", false, "", 0, "", 0},
		{"Deductible 1,000.00", false, "", 0, "", 0},
		{"Carrier: Acme Mutual", false, "", 0, "", 0},
		{"", false, "", 0, "", 0},
	}
	for _, tt := range tests {
		it, ok := parseLine(tt.line)
		require.Equal(t, tt.ok, ok, tt.line)
		if !ok {
			continue
		}
		assert.Equal(t, tt.desc, it.Description, tt.line)
		assert.InDelta(t, tt.qty, it.Quantity, 1e-9, tt.line)
		assert.Equal(t, tt.unit, it.Unit, tt.line)
		assert.InDelta(t, tt.price, it.QuotedPrice, 1e-9, tt.line)
	}
}

func TestRuleExtractor_Extract(t *testing.T) {
	t.Parallel()

	in := model.ClaimAuditInput{
		Items: []model.LineItem{
			{Description: "Tear off shingles", QuotedPrice: 900},
			{Description: "  "},
		},
		DocumentText: "Insurer: Acme Mutual\nRidge cap 40 LF $220.00\nTotal $1,120.00\n",
	}
	ext := NewRuleExtractor().Extract(in)

	assert.Equal(t, "Acme Mutual", ext.CarrierName)
	require.Len(t, ext.Items, 2)
	assert.Equal(t, "roofing", ext.Items[0].Category)
	assert.InDelta(t, 1, ext.Items[0].Quantity, 1e-9)
	assert.Equal(t, "Ridge cap", ext.Items[1].Description)
	assert.InDelta(t, 0.5, ext.Confidence, 1e-9)
}

func TestRuleExtractor_NothingRecognized(t *testing.T) {
	t.Parallel()

	ext := NewRuleExtractor().Extract(model.ClaimAuditInput{DocumentText: "photo of damage"})
	assert.Empty(t, ext.Items)
	assert.InDelta(t, 0.2, ext.Confidence, 1e-9)
	assert.Len(t, ext.Recommendations, 1)
}
