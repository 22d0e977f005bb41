package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// PeriodAllocation is one materialized (budget, source period) record: the
// prorated allocated amount and the running spend for that period instance.
// The document ID is the composite budgetID_sourcePeriodID so regeneration
// upserts instead of duplicating.
type PeriodAllocation struct {
	ID             string `json:"id"`
	BudgetID       string `json:"budget_id"`
	OwnerID        string `json:"owner_id"`
	SourcePeriodID string `json:"source_period_id"`

	PeriodType PeriodType `json:"period_type"`
	// PeriodStart/PeriodEnd are copied from the source period so containment
	// checks never need a second read.
	PeriodStart civil.Date `json:"period_start"`
	PeriodEnd   civil.Date `json:"period_end"` // inclusive

	// AllocatedAmount is immutable once generated; an amount change on the
	// budget regenerates the record rather than mutating it.
	AllocatedAmount float64 `json:"allocated_amount"`
	Spent           float64 `json:"spent"`
	Remaining       float64 `json:"remaining"`

	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllocationID builds the composite document ID for a (budget, period) pair.
func AllocationID(budgetID, sourcePeriodID string) string {
	return budgetID + "_" + sourcePeriodID
}

// ContainsDate reports whether d falls inside the allocation's period,
// both ends inclusive. A transaction dated exactly on a boundary counts
// toward this period, not the adjacent one.
func (a PeriodAllocation) ContainsDate(d civil.Date) bool {
	return !d.Before(a.PeriodStart) && !d.After(a.PeriodEnd)
}
