package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/logger"
	"github.com/dvloznov/budget-engine/internal/store/memory"
)

func TestGenerator_Generate(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 2, 1), date(2027, 2, 28))

	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	g := NewGenerator(s, s, logger.New())

	allocations, err := g.Generate(context.Background(), b, date(2027, 2, 1), date(2027, 2, 28))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Feb 2027: 4 weeks + 2 halves + 1 month.
	if len(allocations) != 7 {
		t.Fatalf("Expected 7 allocations, got %d", len(allocations))
	}

	byType := make(map[domain.PeriodType]int)
	for _, a := range allocations {
		byType[a.PeriodType]++
		if a.Spent != 0 || a.Remaining != a.AllocatedAmount || !a.IsActive {
			t.Errorf("Allocation %s not initialized: %+v", a.ID, a)
		}
		if a.ID != domain.AllocationID(b.ID, a.SourcePeriodID) {
			t.Errorf("Allocation %s not keyed by composite ID", a.ID)
		}
	}
	if byType[domain.PeriodWeekly] != 4 || byType[domain.PeriodBiMonthly] != 2 || byType[domain.PeriodMonthly] != 1 {
		t.Errorf("Granularity counts wrong: %v", byType)
	}
}

func TestGenerator_Idempotent(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 2, 1), date(2027, 3, 31))

	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	g := NewGenerator(s, s, logger.New())
	ctx := context.Background()

	first, err := g.Generate(ctx, b, date(2027, 2, 1), date(2027, 2, 28))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Overlapping re-run: same composite keys, no duplicates, no change in
	// allocated amounts.
	second, err := g.Generate(ctx, b, date(2027, 2, 1), date(2027, 3, 31))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	stored, err := s.ListActiveAllocations(ctx, b.OwnerID, b.ID)
	if err != nil {
		t.Fatalf("ListActiveAllocations failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, a := range stored {
		if seen[a.ID] {
			t.Errorf("Duplicate allocation %s", a.ID)
		}
		seen[a.ID] = true
	}
	if len(stored) != len(second) {
		t.Errorf("Stored %d allocations, expected %d", len(stored), len(second))
	}

	for _, a := range first {
		got, err := s.GetAllocation(a.ID)
		if err != nil {
			t.Fatalf("GetAllocation(%s) failed: %v", a.ID, err)
		}
		if got.AllocatedAmount != a.AllocatedAmount {
			t.Errorf("Allocation %s amount changed on re-run: %v -> %v", a.ID, a.AllocatedAmount, got.AllocatedAmount)
		}
	}
}

func TestGenerator_SkipsPeriodsOutsideBudgetWindow(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 4, 30))

	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 3, 1))
	b.IsOngoing = false
	b.EndDate = datePtr(2027, 3, 31)

	g := NewGenerator(s, s, logger.New())
	allocations, err := g.Generate(context.Background(), b, date(2027, 1, 1), date(2027, 4, 30))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for _, a := range allocations {
		if a.PeriodEnd.Before(b.StartDate) || a.PeriodStart.After(*b.EndDate) {
			t.Errorf("Allocation %s (%v..%v) lies outside the budget window", a.ID, a.PeriodStart, a.PeriodEnd)
		}
	}
}

func TestGenerator_EmptyProviderIsNotAnError(t *testing.T) {
	s := memory.NewStore() // no periods seeded
	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	g := NewGenerator(s, s, logger.New())

	allocations, err := g.Generate(context.Background(), b, date(2027, 2, 1), date(2027, 2, 28))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(allocations) != 0 {
		t.Errorf("Expected no allocations, got %d", len(allocations))
	}
}

func TestGenerator_RejectsInvalidInput(t *testing.T) {
	s := memory.NewStore()
	g := NewGenerator(s, s, logger.New())
	ctx := context.Background()

	if _, err := g.Generate(ctx, nil, date(2027, 2, 1), date(2027, 2, 28)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation for nil budget, got %v", err)
	}

	b := ongoingBudget(domain.PeriodMonthly, 100, date(2027, 2, 1))
	if _, err := g.Generate(ctx, b, date(2027, 2, 28), date(2027, 2, 1)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation for inverted range, got %v", err)
	}
}
