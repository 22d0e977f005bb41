package allocation

import (
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store/memory"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func datePtr(y, m, d int) *civil.Date {
	v := date(y, m, d)
	return &v
}

func ongoingBudget(period domain.PeriodType, amount float64, start civil.Date) *domain.Budget {
	return &domain.Budget{
		ID:        "b1",
		OwnerID:   "owner",
		Period:    period,
		Amount:    amount,
		StartDate: start,
		IsOngoing: true,
		IsActive:  true,
	}
}

func weekPeriod(start civil.Date) domain.SourcePeriod {
	return domain.SourcePeriod{
		ID:        "w_" + start.String(),
		Type:      domain.PeriodWeekly,
		StartDate: start,
		EndDate:   start.AddDays(6),
	}
}

func TestAllocate_IdentityCase(t *testing.T) {
	b := ongoingBudget(domain.PeriodMonthly, 123.45, date(2027, 1, 1))
	p := domain.SourcePeriod{Type: domain.PeriodMonthly, StartDate: date(2027, 2, 1), EndDate: date(2027, 2, 28)}

	if got := Allocate(b, p); got != 123.45 {
		t.Errorf("Allocate identity = %v, want 123.45", got)
	}
}

func TestAllocate_MonthlyToWeekly(t *testing.T) {
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))

	// A week fully inside Feb 2027 (28 days): 7 * 100/28 = 25.00.
	if got := Allocate(b, weekPeriod(date(2027, 2, 8))); got != 25.00 {
		t.Errorf("Allocate Feb week = %v, want 25.00", got)
	}

	// A week fully inside Mar 2027 (31 days): 7 * 100/31 = 22.58.
	if got := Allocate(b, weekPeriod(date(2027, 3, 8))); got != 22.58 {
		t.Errorf("Allocate Mar week = %v, want 22.58", got)
	}
}

func TestAllocate_MonthBoundaryBlendsRates(t *testing.T) {
	// A week spanning Feb/Mar 2026: Feb 23 - Mar 1. Feb 2026 has 28 days,
	// Mar has 31: 6*100/28 + 1*100/31 = 21.4286 + 3.2258 = 24.65.
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2026, 1, 1))
	got := Allocate(b, weekPeriod(date(2026, 2, 23)))
	want := domain.RoundToCents(6*100.0/28 + 1*100.0/31)
	if got != want {
		t.Errorf("Allocate blended week = %v, want %v", got, want)
	}
}

func TestAllocate_ClipsToBudgetRange(t *testing.T) {
	// $100 monthly budget Feb 1 - Mar 19 2027. The last
	// March week containing the end date (Mar 15-21) is clipped to 5 days.
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	b.IsOngoing = false
	b.EndDate = datePtr(2027, 3, 19)

	got := Allocate(b, weekPeriod(date(2027, 3, 15)))
	want := domain.RoundToCents(5 * 100.0 / 31) // 16.13
	if got != want {
		t.Errorf("Allocate clipped week = %v, want %v", got, want)
	}

	// A week entirely after the budget end allocates nothing.
	if got := Allocate(b, weekPeriod(date(2027, 3, 22))); got != 0 {
		t.Errorf("Allocate out-of-range week = %v, want 0", got)
	}
}

func TestAllocate_MonthlyBudgetScenario(t *testing.T) {
	// $100 monthly budget Feb 1 - Mar 19 2027. Feb 2027 tiles into exactly
	// four Monday weeks, which must sum to $100.00; the March weeks must sum
	// to roundToCents(19 * 100/31) = $61.29.
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	b.IsOngoing = false
	b.EndDate = datePtr(2027, 3, 19)

	var febTotal float64
	for _, start := range []civil.Date{date(2027, 2, 1), date(2027, 2, 8), date(2027, 2, 15), date(2027, 2, 22)} {
		febTotal += Allocate(b, weekPeriod(start))
	}
	if febTotal != 100.00 {
		t.Errorf("Feb weekly total = %v, want 100.00", febTotal)
	}

	var marTotal float64
	for _, start := range []civil.Date{date(2027, 3, 1), date(2027, 3, 8), date(2027, 3, 15)} {
		marTotal += Allocate(b, weekPeriod(start))
	}
	if got := domain.RoundToCents(marTotal); got != 61.29 {
		t.Errorf("Mar weekly total = %v, want 61.29", got)
	}
}

func TestAllocate_BiMonthlyBudgetScenario(t *testing.T) {
	// $100 bi-monthly budget Feb 1 - Apr 13: $100 to each of the four
	// Feb/Mar halves, roundToCents(100 * 13/15) = $86.67 to the clipped
	// April half.
	b := ongoingBudget(domain.PeriodBiMonthly, 100, date(2027, 2, 1))
	b.IsOngoing = false
	b.EndDate = datePtr(2027, 4, 13)

	halves := []domain.SourcePeriod{
		{Type: domain.PeriodBiMonthly, StartDate: date(2027, 2, 1), EndDate: date(2027, 2, 15)},
		{Type: domain.PeriodBiMonthly, StartDate: date(2027, 2, 16), EndDate: date(2027, 2, 28)},
		{Type: domain.PeriodBiMonthly, StartDate: date(2027, 3, 1), EndDate: date(2027, 3, 15)},
		{Type: domain.PeriodBiMonthly, StartDate: date(2027, 3, 16), EndDate: date(2027, 3, 31)},
	}
	for _, p := range halves {
		if got := Allocate(b, p); got != 100.00 {
			t.Errorf("Allocate %v-%v = %v, want 100.00", p.StartDate, p.EndDate, got)
		}
	}

	partial := domain.SourcePeriod{Type: domain.PeriodBiMonthly, StartDate: date(2027, 4, 1), EndDate: date(2027, 4, 15)}
	if got := Allocate(b, partial); got != 86.67 {
		t.Errorf("Allocate partial April half = %v, want 86.67", got)
	}
}

func TestAllocate_WeeklyNative(t *testing.T) {
	b := ongoingBudget(domain.PeriodWeekly, 70, date(2027, 2, 1))

	// Monthly target, Feb 2027 (28 days): 28 * 70/7 = 280.
	p := domain.SourcePeriod{Type: domain.PeriodMonthly, StartDate: date(2027, 2, 1), EndDate: date(2027, 2, 28)}
	if got := Allocate(b, p); got != 280.00 {
		t.Errorf("Allocate weekly->monthly = %v, want 280.00", got)
	}
}

func TestAllocate_CrossGranularityConsistency(t *testing.T) {
	// For a span fully tiled by all three granularities, the per-granularity
	// allocation totals must agree within $0.01 - for every native type.
	// Feb 2027: 4 Monday weeks, 2 halves, 1 month.
	spanStart, spanEnd := date(2027, 2, 1), date(2027, 2, 28)

	tilings := map[string][]domain.SourcePeriod{
		"weekly":     memory.WeeklyPeriods(spanStart, spanEnd),
		"bi_monthly": memory.BiMonthlyPeriods(spanStart, spanEnd),
		"monthly":    memory.MonthlyPeriods(spanStart, spanEnd),
	}

	for _, native := range domain.AllPeriodTypes {
		b := ongoingBudget(native, 137.53, spanStart)
		totals := make(map[string]float64)
		for name, periods := range tilings {
			var sum float64
			for _, p := range periods {
				sum += Allocate(b, p)
			}
			totals[name] = sum
		}
		const tolerance = 0.01 + 1e-9
		for name, sum := range totals {
			if diff := math.Abs(sum - totals["monthly"]); diff > tolerance {
				t.Errorf("native=%s: %s total %v differs from monthly total %v by %v",
					native, name, sum, totals["monthly"], diff)
			}
		}
	}
}

func TestAllocate_NoOverlapReturnsZero(t *testing.T) {
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 5, 1))
	if got := Allocate(b, weekPeriod(date(2027, 2, 1))); got != 0 {
		t.Errorf("Allocate before budget start = %v, want 0", got)
	}
}
