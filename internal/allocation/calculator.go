// Package allocation converts a budget's native-period amount into prorated
// amounts for period instances of every granularity, and materializes one
// allocation record per (budget, source period) pair.
package allocation

import (
	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// Allocate returns the prorated amount of the budget for one target period.
//
// The target is clipped to the budget's active window first; days outside it
// contribute nothing. A target of the budget's own period type that fully
// overlaps the window gets the native amount unchanged. Every other case is
// day-weighted: each clipped day contributes the budget amount divided by the
// day count of the native-period instance containing that day, so a target
// spanning a month boundary blends the two daily rates. The sum is rounded to
// cents once, at the end.
func Allocate(b *domain.Budget, period domain.SourcePeriod) float64 {
	start := domain.MaxDate(period.StartDate, b.StartDate)
	end := period.EndDate
	if !b.IsOngoing && b.EndDate != nil {
		end = domain.MinDate(end, *b.EndDate)
	}
	if end.Before(start) {
		return 0
	}

	if period.Type == b.Period && start == period.StartDate && end == period.EndDate {
		return b.Amount
	}

	var total float64
	for d := start; !d.After(end); d = d.AddDays(1) {
		total += b.Amount / float64(nativeDayCount(b.Period, d))
	}
	return domain.RoundToCents(total)
}

// nativeDayCount is the day count of the native-period instance containing d.
func nativeDayCount(native domain.PeriodType, d civil.Date) int {
	switch native {
	case domain.PeriodMonthly:
		return domain.DaysInMonth(d)
	case domain.PeriodBiMonthly:
		return domain.BiMonthlyHalfDays(d)
	default:
		return 7
	}
}
