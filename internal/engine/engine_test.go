package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/allocation"
	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/logger"
	"github.com/dvloznov/budget-engine/internal/reassign"
	"github.com/dvloznov/budget-engine/internal/reconcile"
	"github.com/dvloznov/budget-engine/internal/store/memory"
)

const owner = "owner-1"

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

// recordingSink captures audit runs for assertions. Fail makes every write
// error out.
type recordingSink struct {
	runs []AuditRun
	Fail error
}

func (r *recordingSink) RecordRun(_ context.Context, run AuditRun) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.runs = append(r.runs, run)
	return nil
}

func newEngine(s *memory.Store, sink AuditSink) *Engine {
	log := logger.New()
	matcher := category.NewTaxonomyMatcher(nil)
	e := New(
		s, s,
		allocation.NewGenerator(s, s, log),
		reconcile.NewReconciler(s, log),
		reconcile.NewRecalculator(s, s, s, matcher, log),
		reassign.NewEngine(s, s, matcher, log),
		sink,
		1,
		log,
	)
	e.today = func() civil.Date { return date(2027, 2, 1) }
	return e
}

func groceriesBudget() *domain.Budget {
	return &domain.Budget{
		ID:          "b1",
		OwnerID:     owner,
		Name:        "Groceries",
		Period:      domain.PeriodMonthly,
		Amount:      400,
		CategoryIDs: []string{"groceries"},
		StartDate:   date(2027, 2, 1),
		IsOngoing:   true,
		IsActive:    true,
	}
}

func expenseTx(id string, d civil.Date, splits ...domain.TransactionSplit) *domain.Transaction {
	return &domain.Transaction{
		ID:      id,
		OwnerID: owner,
		Date:    d,
		Status:  domain.TransactionApproved,
		Type:    domain.TransactionExpense,
		Splits:  splits,
	}
}

func TestOnBudgetCreated_GeneratesAndAbsorbs(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 4, 30))
	b := groceriesBudget()
	s.PutBudget(b)
	// Written before the budget existed.
	s.PutTransaction(expenseTx("t1", date(2027, 2, 10),
		domain.TransactionSplit{Amount: 50, CategoryID: "groceries", BudgetID: domain.BudgetUnassigned}))

	sink := &recordingSink{}
	result, err := newEngine(s, sink).OnBudgetCreated(context.Background(), b)
	if err != nil {
		t.Fatalf("OnBudgetCreated failed: %v", err)
	}

	if result.TransactionsProcessed != 1 || result.TotalSpendingFound != 50 {
		t.Errorf("RecalcResult = %+v, want 1 transaction totaling 50", result)
	}

	// The February monthly allocation exists with the absorbed spend.
	a, err := s.GetAllocation(domain.AllocationID("b1", "monthly_2027_02"))
	if err != nil {
		t.Fatalf("February allocation missing: %v", err)
	}
	if a.AllocatedAmount != 400 || a.Spent != 50 || a.Remaining != 350 {
		t.Errorf("allocation = allocated %v spent %v remaining %v, want 400/50/350",
			a.AllocatedAmount, a.Spent, a.Remaining)
	}

	// The split was claimed for the new budget.
	tx, _ := s.GetTransaction("t1")
	if got := tx.Splits[0].BudgetID; got != "b1" {
		t.Errorf("split budget = %q, want b1", got)
	}

	if len(sink.runs) != 1 || sink.runs[0].Operation != "budget_created" {
		t.Errorf("audit runs = %+v, want one budget_created run", sink.runs)
	}
	if sink.runs[0].RunID == "" {
		t.Error("audit run has no run ID")
	}
}

func TestOnTransactionWrite_AppliesDelta(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 4, 30))
	b := groceriesBudget()
	s.PutBudget(b)

	sink := &recordingSink{}
	e := newEngine(s, sink)
	if _, err := e.OnBudgetCreated(context.Background(), b); err != nil {
		t.Fatalf("OnBudgetCreated failed: %v", err)
	}

	tx := expenseTx("t1", date(2027, 2, 10),
		domain.TransactionSplit{Amount: 75, CategoryID: "groceries", BudgetID: "b1"})
	result, err := e.OnTransactionWrite(context.Background(), nil, tx, owner)
	if err != nil {
		t.Fatalf("OnTransactionWrite failed: %v", err)
	}
	if result.PeriodsUpdated != 3 {
		t.Errorf("PeriodsUpdated = %d, want 3 (one per granularity)", result.PeriodsUpdated)
	}

	a, _ := s.GetAllocation(domain.AllocationID("b1", "monthly_2027_02"))
	if a.Spent != 75 {
		t.Errorf("spent = %v, want 75", a.Spent)
	}
}

func TestOnBudgetDeleted_DeactivatesAndReassigns(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 4, 30))
	b := groceriesBudget()
	s.PutBudget(b)

	sink := &recordingSink{}
	e := newEngine(s, sink)
	ctx := context.Background()
	if _, err := e.OnBudgetCreated(ctx, b); err != nil {
		t.Fatalf("OnBudgetCreated failed: %v", err)
	}
	s.PutTransaction(expenseTx("t1", date(2027, 2, 10),
		domain.TransactionSplit{Amount: 75, CategoryID: "groceries", BudgetID: "b1"}))

	// Soft delete, then fire the event.
	b.IsActive = false
	s.PutBudget(b)
	result, err := e.OnBudgetDeleted(ctx, b)
	if err != nil {
		t.Fatalf("OnBudgetDeleted failed: %v", err)
	}

	if result.SplitsReassigned != 1 {
		t.Errorf("SplitsReassigned = %d, want 1", result.SplitsReassigned)
	}
	tx, _ := s.GetTransaction("t1")
	if got := tx.Splits[0].BudgetID; got != domain.BudgetUnassigned {
		t.Errorf("split budget = %q, want %q (no replacement budget exists)", got, domain.BudgetUnassigned)
	}

	remaining, err := s.ListActiveAllocations(ctx, owner, "b1")
	if err != nil {
		t.Fatalf("ListActiveAllocations failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d allocations still active after delete, want 0", len(remaining))
	}
}

func TestOnBudgetDeleted_RejectsActiveBudget(t *testing.T) {
	s := memory.NewStore()
	b := groceriesBudget()
	s.PutBudget(b)

	_, err := newEngine(s, nil).OnBudgetDeleted(context.Background(), b)
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}
}

func TestExtendPeriods_AllOwnerBudgets(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 6, 30))
	b1 := groceriesBudget()
	s.PutBudget(b1)
	b2 := groceriesBudget()
	b2.ID = "b2"
	b2.Name = "Dining"
	b2.CategoryIDs = []string{"dining"}
	s.PutBudget(b2)

	result, err := newEngine(s, nil).ExtendPeriods(context.Background(), owner, "", 2)
	if err != nil {
		t.Fatalf("ExtendPeriods failed: %v", err)
	}
	if result.BudgetsProcessed != 2 {
		t.Errorf("BudgetsProcessed = %d, want 2", result.BudgetsProcessed)
	}
	if result.AllocationsUpserted == 0 {
		t.Error("Expected allocations to be upserted")
	}

	// Horizon of two months past 2027-02-01 reaches the April monthly period.
	if _, err := s.GetAllocation(domain.AllocationID("b2", "monthly_2027_04")); err != nil {
		t.Errorf("April allocation for b2 missing: %v", err)
	}
}

func TestExtendPeriods_SingleBudget(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 6, 30))
	s.PutBudget(groceriesBudget())

	result, err := newEngine(s, nil).ExtendPeriods(context.Background(), owner, "b1", 1)
	if err != nil {
		t.Fatalf("ExtendPeriods failed: %v", err)
	}
	if result.BudgetsProcessed != 1 {
		t.Errorf("BudgetsProcessed = %d, want 1", result.BudgetsProcessed)
	}

	if _, err := newEngine(s, nil).ExtendPeriods(context.Background(), owner, "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown budget, got %v", err)
	}
}

func TestAuditSinkFailureIsSwallowed(t *testing.T) {
	s := memory.NewStore()
	s.SeedCalendarPeriods(date(2027, 1, 1), date(2027, 4, 30))
	b := groceriesBudget()
	s.PutBudget(b)

	sink := &recordingSink{Fail: errors.New("sink unavailable")}
	if _, err := newEngine(s, sink).OnBudgetCreated(context.Background(), b); err != nil {
		t.Errorf("Sink failure must not surface, got %v", err)
	}
}
