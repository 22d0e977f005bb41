package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// PeriodType identifies one of the three supported period granularities.
type PeriodType string

const (
	// PeriodWeekly is a seven-day calendar period.
	PeriodWeekly PeriodType = "weekly"
	// PeriodBiMonthly is a half-month period: days 1-15, then 16 to month end.
	PeriodBiMonthly PeriodType = "bi_monthly"
	// PeriodMonthly is a full calendar month.
	PeriodMonthly PeriodType = "monthly"
)

// AllPeriodTypes lists every granularity the engine materializes allocations for.
var AllPeriodTypes = []PeriodType{PeriodWeekly, PeriodBiMonthly, PeriodMonthly}

// Valid reports whether t is one of the supported period types.
func (t PeriodType) Valid() bool {
	switch t {
	case PeriodWeekly, PeriodBiMonthly, PeriodMonthly:
		return true
	}
	return false
}

// ParsePeriodType converts a wire string into a PeriodType.
func ParsePeriodType(s string) (PeriodType, error) {
	t := PeriodType(s)
	if !t.Valid() {
		return "", fmt.Errorf("parse period type %q: %w", s, ErrValidation)
	}
	return t, nil
}

// SourcePeriod is an externally generated calendar interval. The engine only
// reads these; the boundary generator that produces them is a collaborator.
type SourcePeriod struct {
	ID        string     `json:"id"`
	Type      PeriodType `json:"type"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"` // inclusive
	Year      int        `json:"year"`
	Index     int        `json:"index"` // ordinal within the year for this granularity
}

// Contains reports whether d falls inside the period, both ends inclusive.
func (p SourcePeriod) Contains(d civil.Date) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Days is the inclusive day count of the period.
func (p SourcePeriod) Days() int {
	return DaysInclusive(p.StartDate, p.EndDate)
}

// DaysInclusive counts the days from a to b, both ends included.
// Returns 0 when b precedes a.
func DaysInclusive(a, b civil.Date) int {
	if b.Before(a) {
		return 0
	}
	return b.DaysSince(a) + 1
}

// DaysInMonth returns the number of days in the calendar month containing d.
func DaysInMonth(d civil.Date) int {
	return time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BiMonthlyHalfDays returns the day count of the bi-monthly half containing d:
// 15 for the first half, daysInMonth-15 for the second.
func BiMonthlyHalfDays(d civil.Date) int {
	if d.Day <= 15 {
		return 15
	}
	return DaysInMonth(d) - 15
}

// MaxDate returns the later of two dates.
func MaxDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return b
	}
	return a
}

// MinDate returns the earlier of two dates.
func MinDate(a, b civil.Date) civil.Date {
	if b.Before(a) {
		return b
	}
	return a
}
