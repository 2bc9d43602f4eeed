package gateway

import (
	"fmt"
	"strings"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

const systemPrompt = `You review property insurance claim estimates for homeowners.
Read the carrier estimate and return ONLY a JSON object with this shape:
{
  "carrier_name": string,
  "items": [{"description": string, "category": string, "quantity": number, "unit": string, "quoted_price": number}],
  "missing_items": [{"description": string, "category": string, "reason": string}],
  "recommendations": [string],
  "confidence": number
}
Categories are lowercase trade names such as roofing, gutters, siding, drywall, flooring, painting, plumbing, electrical, hvac, windows.
quoted_price is the line total in US dollars. List items a contractor would expect for the scope but that the estimate omits under missing_items.
confidence is your confidence in the extraction between 0 and 1. Do not invent prices.`

// Prompt is the provider-neutral request text.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the claim input for a provider.
func BuildPrompt(in model.ClaimAuditInput) Prompt {
	var b strings.Builder
	if in.CarrierName != "" {
		fmt.Fprintf(&b, "Carrier: %s\n", in.CarrierName)
	}
	if in.ZipCode != "" {
		fmt.Fprintf(&b, "Property ZIP: %s\n", in.ZipCode)
	}
	if len(in.Items) > 0 {
		b.WriteString("\nLine items:\n")
		for i, it := range in.Items {
			fmt.Fprintf(&b, "%d. %s", i+1, it.Description)
			if it.Category != "" {
				fmt.Fprintf(&b, " [%s]", it.Category)
			}
			if it.Quantity > 0 {
				fmt.Fprintf(&b, " qty %g", it.Quantity)
				if it.Unit != "" {
					fmt.Fprintf(&b, " %s", it.Unit)
				}
			}
			fmt.Fprintf(&b, " $%.2f\n", it.QuotedPrice)
		}
	}
	if doc := strings.TrimSpace(in.DocumentText); doc != "" {
		b.WriteString("\nEstimate text:\n")
		b.WriteString(doc)
		b.WriteString("\n")
	}
	return Prompt{System: systemPrompt, User: b.String()}
}
