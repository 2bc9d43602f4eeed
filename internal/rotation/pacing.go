package rotation

import (
	"time"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
)

// Pacing band around an even pro-rata spend.
const (
	onPaceLow  = 0.8
	onPaceHigh = 1.2
)

// CalculateBudgetPacing compares p's spend with an even spend through the
// calendar month of now. Partners without a budget are always on pace.
func CalculateBudgetPacing(p model.PartnerAdConfig, now time.Time) model.BudgetPacing {
	day := now.Day()
	days := daysInMonth(now)

	bp := model.BudgetPacing{
		PartnerID:       p.PartnerID,
		DayOfMonth:      day,
		DaysInMonth:     days,
		IdealSpendRatio: float64(day) / float64(days),
		RemainingBudget: p.RemainingBudget(),
	}
	if p.MonthlyBudget <= 0 {
		bp.IsOnPace = true
		return bp
	}

	bp.ActualSpendRatio = p.BudgetSpent / p.MonthlyBudget
	bp.SpendRate = bp.ActualSpendRatio / bp.IdealSpendRatio
	bp.IsOnPace = bp.SpendRate >= onPaceLow && bp.SpendRate <= onPaceHigh

	remainingDays := max(days-day, 1)
	bp.RecommendedDailySpend = bp.RemainingBudget / float64(remainingDays)
	bp.ProjectedMonthEnd = p.BudgetSpent / float64(day) * float64(days)
	return bp
}
