package memory

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// SeedCalendarPeriods generates and stores source periods of all three
// granularities covering [start, end]: Monday-aligned weeks, 1-15/16-EOM
// bi-monthly halves, and calendar months. It stands in for the external
// boundary generator in tests and development runs.
func (s *Store) SeedCalendarPeriods(start, end civil.Date) {
	s.PutPeriods(domain.PeriodWeekly, WeeklyPeriods(start, end))
	s.PutPeriods(domain.PeriodBiMonthly, BiMonthlyPeriods(start, end))
	s.PutPeriods(domain.PeriodMonthly, MonthlyPeriods(start, end))
}

// WeeklyPeriods returns Monday-aligned weeks whose span touches [start, end].
func WeeklyPeriods(start, end civil.Date) []domain.SourcePeriod {
	// Walk back to the Monday on or before start.
	cur := start
	for cur.In(time.UTC).Weekday() != time.Monday {
		cur = cur.AddDays(-1)
	}
	var periods []domain.SourcePeriod
	for !cur.After(end) {
		weekEnd := cur.AddDays(6)
		year, week := cur.In(time.UTC).ISOWeek()
		periods = append(periods, domain.SourcePeriod{
			ID:        fmt.Sprintf("weekly_%d_%02d", year, week),
			Type:      domain.PeriodWeekly,
			StartDate: cur,
			EndDate:   weekEnd,
			Year:      year,
			Index:     week,
		})
		cur = cur.AddDays(7)
	}
	return periods
}

// BiMonthlyPeriods returns the 1-15 and 16-EOM halves of every month touching
// [start, end].
func BiMonthlyPeriods(start, end civil.Date) []domain.SourcePeriod {
	var periods []domain.SourcePeriod
	cur := civil.Date{Year: start.Year, Month: start.Month, Day: 1}
	for !cur.After(end) {
		mid := civil.Date{Year: cur.Year, Month: cur.Month, Day: 15}
		eom := civil.Date{Year: cur.Year, Month: cur.Month, Day: domain.DaysInMonth(cur)}
		halves := []struct {
			start, end civil.Date
			half       int
		}{
			{cur, mid, 1},
			{mid.AddDays(1), eom, 2},
		}
		for _, h := range halves {
			index := (int(cur.Month)-1)*2 + h.half
			periods = append(periods, domain.SourcePeriod{
				ID:        fmt.Sprintf("bi_monthly_%d_%02d", cur.Year, index),
				Type:      domain.PeriodBiMonthly,
				StartDate: h.start,
				EndDate:   h.end,
				Year:      cur.Year,
				Index:     index,
			})
		}
		cur = eom.AddDays(1)
	}
	return periods
}

// MonthlyPeriods returns the calendar months touching [start, end].
func MonthlyPeriods(start, end civil.Date) []domain.SourcePeriod {
	var periods []domain.SourcePeriod
	cur := civil.Date{Year: start.Year, Month: start.Month, Day: 1}
	for !cur.After(end) {
		eom := civil.Date{Year: cur.Year, Month: cur.Month, Day: domain.DaysInMonth(cur)}
		periods = append(periods, domain.SourcePeriod{
			ID:        fmt.Sprintf("monthly_%d_%02d", cur.Year, int(cur.Month)),
			Type:      domain.PeriodMonthly,
			StartDate: cur,
			EndDate:   eom,
			Year:      cur.Year,
			Index:     int(cur.Month),
		})
		cur = eom.AddDays(1)
	}
	return periods
}
