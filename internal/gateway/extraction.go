package gateway

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// Extraction is the structured reading of a claim produced by a provider or
// by the rule extractor.
type Extraction struct {
	CarrierName     string              `json:"carrier_name,omitempty"`
	Items           []model.LineItem    `json:"items"`
	MissingItems    []model.MissingItem `json:"missing_items,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	Confidence      float64             `json:"confidence"`
}

// parseExtraction decodes a model reply. Replies wrapped in prose or a
// markdown fence are trimmed to the outermost JSON object.
func parseExtraction(text string) (*Extraction, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Wrap(resilience.ErrProviderError, "gateway: reply has no JSON object")
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &ext); err != nil {
		return nil, eris.Wrapf(resilience.ErrProviderError, "gateway: decode reply: %v", err)
	}

	items := ext.Items[:0]
	for _, it := range ext.Items {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			continue
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		it.Category = strings.ToLower(strings.TrimSpace(it.Category))
		items = append(items, it)
	}
	ext.Items = items
	ext.Confidence = min(max(ext.Confidence, 0), 1)
	return &ext, nil
}
