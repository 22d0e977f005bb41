package allocation

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// Generator materializes period allocation records for a budget across a date
// range, one per overlapping source period of every granularity.
type Generator struct {
	provider    store.PeriodProvider
	allocations store.AllocationStore
	log         zerolog.Logger
}

// NewGenerator creates a generator backed by the given period provider and
// allocation store.
func NewGenerator(provider store.PeriodProvider, allocations store.AllocationStore, log zerolog.Logger) *Generator {
	return &Generator{
		provider:    provider,
		allocations: allocations,
		log:         log,
	}
}

// Generate creates one allocation per (budget, source period) pair for every
// source period of every granularity whose start date falls inside
// [rangeStart, rangeEnd]. Records are keyed by the composite
// budgetID_sourcePeriodID, so re-running over an overlapping range upserts
// instead of duplicating. Periods with no overlap with the budget's own
// active window are skipped.
//
// A provider with no periods for the range is not an error: the result is
// empty and the caller may retry once periods exist.
func (g *Generator) Generate(ctx context.Context, b *domain.Budget, rangeStart, rangeEnd civil.Date) ([]*domain.PeriodAllocation, error) {
	if b == nil || b.ID == "" {
		return nil, fmt.Errorf("generate: missing budget: %w", domain.ErrValidation)
	}
	if !rangeStart.IsValid() || !rangeEnd.IsValid() || rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("generate: invalid range %v..%v: %w", rangeStart, rangeEnd, domain.ErrValidation)
	}

	dateRange := store.DateRange{Start: rangeStart, End: rangeEnd}

	var periods []domain.SourcePeriod
	for _, t := range domain.AllPeriodTypes {
		ps, err := g.provider.GetSourcePeriods(ctx, t, dateRange)
		if err != nil {
			return nil, fmt.Errorf("generate: fetching %s periods: %w", t, err)
		}
		periods = append(periods, ps...)
	}

	if len(periods) == 0 {
		g.log.Info().
			Str("budget_id", b.ID).
			Str("range_start", rangeStart.String()).
			Str("range_end", rangeEnd.String()).
			Msg("No source periods for range; nothing generated")
		return []*domain.PeriodAllocation{}, nil
	}

	var allocations []*domain.PeriodAllocation
	for _, p := range periods {
		if !overlapsBudget(b, p) {
			continue
		}
		allocated := Allocate(b, p)
		allocations = append(allocations, &domain.PeriodAllocation{
			ID:              domain.AllocationID(b.ID, p.ID),
			BudgetID:        b.ID,
			OwnerID:         b.OwnerID,
			SourcePeriodID:  p.ID,
			PeriodType:      p.Type,
			PeriodStart:     p.StartDate,
			PeriodEnd:       p.EndDate,
			AllocatedAmount: allocated,
			Spent:           0,
			Remaining:       allocated,
			IsActive:        true,
		})
	}

	for lo := 0; lo < len(allocations); lo += store.MaxBatchSize {
		hi := lo + store.MaxBatchSize
		if hi > len(allocations) {
			hi = len(allocations)
		}
		if err := g.allocations.UpsertAllocations(ctx, allocations[lo:hi]); err != nil {
			return nil, fmt.Errorf("generate: upserting allocations [%d:%d]: %w", lo, hi, err)
		}
	}

	g.log.Info().
		Str("budget_id", b.ID).
		Int("allocations", len(allocations)).
		Msg("Period allocations generated")

	return allocations, nil
}

// overlapsBudget reports whether the period shares at least one day with the
// budget's active window.
func overlapsBudget(b *domain.Budget, p domain.SourcePeriod) bool {
	if p.EndDate.Before(b.StartDate) {
		return false
	}
	if !b.IsOngoing && b.EndDate != nil && p.StartDate.After(*b.EndDate) {
		return false
	}
	return true
}
