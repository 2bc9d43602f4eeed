package model

// AnalyzerRole ranks an analyzer version within the fallback chain.
type AnalyzerRole string

const (
	RolePrimary  AnalyzerRole = "primary"
	RoleFallback AnalyzerRole = "fallback"
	RoleArchived AnalyzerRole = "archived-but-viable"
)

// Rank returns the chain position of the role: 0 for primary, 1 for
// fallback, 2 for archived. Unknown roles sort last.
func (r AnalyzerRole) Rank() int {
	switch r {
	case RolePrimary:
		return 0
	case RoleFallback:
		return 1
	case RoleArchived:
		return 2
	default:
		return 3
	}
}

// MaxConfidence is the highest confidence a result produced by this role may
// report.
func (r AnalyzerRole) MaxConfidence() float64 {
	switch r {
	case RolePrimary:
		return 0.95
	case RoleFallback:
		return 0.75
	case RoleArchived:
		return 0.4
	default:
		return 0
	}
}

// ClampConfidence bounds c to [0, r.MaxConfidence()].
func (r AnalyzerRole) ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if max := r.MaxConfidence(); c > max {
		return max
	}
	return c
}

// AnalyzerVersion identifies one claim-analysis implementation.
type AnalyzerVersion struct {
	ID   string       `json:"id"`
	Role AnalyzerRole `json:"role"`
}
