package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

func date(y int, m int, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func TestStore_BudgetLookup(t *testing.T) {
	s := NewStore()
	s.PutBudget(&domain.Budget{ID: "b1", OwnerID: "owner", IsActive: true})
	s.PutBudget(&domain.Budget{ID: "b2", OwnerID: "owner", IsActive: false})
	s.PutBudget(&domain.Budget{ID: "b3", OwnerID: "other", IsActive: true})

	ctx := context.Background()

	if _, err := s.GetBudget(ctx, "owner", "b1"); err != nil {
		t.Fatalf("GetBudget failed: %v", err)
	}
	if _, err := s.GetBudget(ctx, "owner", "b3"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other owner's budget, got %v", err)
	}

	active, err := s.ListActiveBudgets(ctx, "owner")
	if err != nil {
		t.Fatalf("ListActiveBudgets failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "b1" {
		t.Errorf("ListActiveBudgets = %v, want just b1", active)
	}
}

func TestStore_CatchAllLookup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.GetCatchAllBudget(ctx, "owner"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound without catch-all, got %v", err)
	}

	s.PutBudget(&domain.Budget{ID: "ca", OwnerID: "owner", IsActive: true, IsSystemCatchAll: true})
	b, err := s.GetCatchAllBudget(ctx, "owner")
	if err != nil {
		t.Fatalf("GetCatchAllBudget failed: %v", err)
	}
	if b.ID != "ca" {
		t.Errorf("GetCatchAllBudget = %s, want ca", b.ID)
	}
}

func TestStore_ApplySpendingDeltas(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	alloc := &domain.PeriodAllocation{
		ID: "b1_p1", BudgetID: "b1", OwnerID: "owner",
		AllocatedAmount: 100, Remaining: 100, IsActive: true,
	}
	if err := s.UpsertAllocations(ctx, []*domain.PeriodAllocation{alloc}); err != nil {
		t.Fatalf("UpsertAllocations failed: %v", err)
	}

	if err := s.ApplySpendingDeltas(ctx, []store.SpendingDelta{{AllocationID: "b1_p1", Delta: 25.50}}); err != nil {
		t.Fatalf("ApplySpendingDeltas failed: %v", err)
	}
	got, err := s.GetAllocation("b1_p1")
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if got.Spent != 25.50 || got.Remaining != 74.50 {
		t.Errorf("After delta: spent=%v remaining=%v, want 25.50/74.50", got.Spent, got.Remaining)
	}

	// Negative delta (refund / deletion) walks it back.
	if err := s.ApplySpendingDeltas(ctx, []store.SpendingDelta{{AllocationID: "b1_p1", Delta: -25.50}}); err != nil {
		t.Fatalf("ApplySpendingDeltas failed: %v", err)
	}
	got, _ = s.GetAllocation("b1_p1")
	if got.Spent != 0 || got.Remaining != 100 {
		t.Errorf("After reversal: spent=%v remaining=%v, want 0/100", got.Spent, got.Remaining)
	}
}

func TestStore_UpsertPreservesSpent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	alloc := &domain.PeriodAllocation{ID: "b1_p1", BudgetID: "b1", OwnerID: "owner", AllocatedAmount: 100, Remaining: 100, IsActive: true}
	if err := s.UpsertAllocations(ctx, []*domain.PeriodAllocation{alloc}); err != nil {
		t.Fatalf("UpsertAllocations failed: %v", err)
	}
	if err := s.ApplySpendingDeltas(ctx, []store.SpendingDelta{{AllocationID: "b1_p1", Delta: 40}}); err != nil {
		t.Fatalf("ApplySpendingDeltas failed: %v", err)
	}

	// Regenerate with a new allocated amount; spent must survive.
	realloc := &domain.PeriodAllocation{ID: "b1_p1", BudgetID: "b1", OwnerID: "owner", AllocatedAmount: 200, Remaining: 200, IsActive: true}
	if err := s.UpsertAllocations(ctx, []*domain.PeriodAllocation{realloc}); err != nil {
		t.Fatalf("UpsertAllocations failed: %v", err)
	}
	got, _ := s.GetAllocation("b1_p1")
	if got.Spent != 40 || got.AllocatedAmount != 200 || got.Remaining != 160 {
		t.Errorf("After regen: spent=%v allocated=%v remaining=%v, want 40/200/160", got.Spent, got.AllocatedAmount, got.Remaining)
	}
}

func TestStore_BatchSizeBound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	deltas := make([]store.SpendingDelta, store.MaxBatchSize+1)
	err := s.ApplySpendingDeltas(ctx, deltas)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation for oversized batch, got %v", err)
	}
}

func TestSeedCalendarPeriods(t *testing.T) {
	s := NewStore()
	// Feb 2027 starts on a Monday and has exactly 28 days: four whole weeks.
	s.SeedCalendarPeriods(date(2027, 2, 1), date(2027, 2, 28))

	ctx := context.Background()
	r := store.DateRange{Start: date(2027, 2, 1), End: date(2027, 2, 28)}

	weeks, err := s.GetSourcePeriods(ctx, domain.PeriodWeekly, r)
	if err != nil {
		t.Fatalf("GetSourcePeriods failed: %v", err)
	}
	if len(weeks) != 4 {
		t.Fatalf("Expected 4 weekly periods in Feb 2027, got %d", len(weeks))
	}
	if weeks[0].StartDate != date(2027, 2, 1) || weeks[3].EndDate != date(2027, 2, 28) {
		t.Errorf("Weekly tiling wrong: first=%v last=%v", weeks[0], weeks[3])
	}

	halves, err := s.GetSourcePeriods(ctx, domain.PeriodBiMonthly, r)
	if err != nil {
		t.Fatalf("GetSourcePeriods failed: %v", err)
	}
	if len(halves) != 2 {
		t.Fatalf("Expected 2 bi-monthly periods, got %d", len(halves))
	}
	if halves[0].EndDate != date(2027, 2, 15) || halves[1].StartDate != date(2027, 2, 16) {
		t.Errorf("Bi-monthly split wrong: %v / %v", halves[0], halves[1])
	}

	months, err := s.GetSourcePeriods(ctx, domain.PeriodMonthly, r)
	if err != nil {
		t.Fatalf("GetSourcePeriods failed: %v", err)
	}
	if len(months) != 1 || months[0].Days() != 28 {
		t.Errorf("Expected one 28-day monthly period, got %v", months)
	}
}

func TestGetSourcePeriods_StartDateMembership(t *testing.T) {
	s := NewStore()
	// Seed January too; a week starting Jan 25 overlaps Feb 1 but must be
	// excluded when the range starts Feb 1.
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 2, 28))

	weeks, err := s.GetSourcePeriods(context.Background(), domain.PeriodWeekly,
		store.DateRange{Start: date(2027, 2, 1), End: date(2027, 2, 28)})
	if err != nil {
		t.Fatalf("GetSourcePeriods failed: %v", err)
	}
	for _, w := range weeks {
		if w.StartDate.Before(date(2027, 2, 1)) {
			t.Errorf("Period starting %v should be excluded by start-date membership", w.StartDate)
		}
	}
}
