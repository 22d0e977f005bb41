// Package engine wires the allocation, reconciliation and reassignment
// components behind the event-shaped entry points the rest of the platform
// calls: transaction writes, budget lifecycle changes and period-horizon
// maintenance.
package engine

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/allocation"
	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/reassign"
	"github.com/dvloznov/budget-engine/internal/reconcile"
	"github.com/dvloznov/budget-engine/internal/store"
)

// AuditRun is one engine invocation as recorded in the audit sink.
type AuditRun struct {
	RunID                 string
	OwnerID               string
	BudgetID              string
	Operation             string
	PeriodsUpdated        int
	TransactionsProcessed int
	SplitsReassigned      int
	ErrorCount            int
	StartedAt             time.Time
	FinishedAt            time.Time
}

// AuditSink records engine runs for offline analysis. Recording is
// best-effort: a sink failure is logged, never surfaced to the caller.
type AuditSink interface {
	RecordRun(ctx context.Context, run AuditRun) error
}

// ExtendResult reports the outcome of a period-horizon extension.
type ExtendResult struct {
	BudgetsProcessed    int
	AllocationsUpserted int
	Errors              []error
}

// Engine is the facade over the budget engine's components.
type Engine struct {
	budgets      store.BudgetStore
	allocations  store.AllocationStore
	generator    *allocation.Generator
	reconciler   *reconcile.Reconciler
	recalculator *reconcile.Recalculator
	reassigner   *reassign.Engine
	audit        AuditSink

	// horizonMonths bounds how far past today period allocations are
	// materialized for ongoing budgets.
	horizonMonths int

	log   zerolog.Logger
	today func() civil.Date
}

// New creates the engine facade. audit may be nil to disable run recording.
func New(
	budgets store.BudgetStore,
	allocations store.AllocationStore,
	generator *allocation.Generator,
	reconciler *reconcile.Reconciler,
	recalculator *reconcile.Recalculator,
	reassigner *reassign.Engine,
	audit AuditSink,
	horizonMonths int,
	log zerolog.Logger,
) *Engine {
	if horizonMonths <= 0 {
		horizonMonths = 3
	}
	return &Engine{
		budgets:       budgets,
		allocations:   allocations,
		generator:     generator,
		reconciler:    reconciler,
		recalculator:  recalculator,
		reassigner:    reassigner,
		audit:         audit,
		horizonMonths: horizonMonths,
		log:           log,
		today:         func() civil.Date { return civil.DateOf(time.Now().UTC()) },
	}
}

// OnTransactionWrite reconciles one transaction create, update or delete
// against the owner's period allocations.
func (e *Engine) OnTransactionWrite(ctx context.Context, oldTx, newTx *domain.Transaction, ownerID string) (*reconcile.Result, error) {
	started := time.Now()
	result, err := e.reconciler.Reconcile(ctx, oldTx, newTx, ownerID)
	if err != nil {
		return nil, err
	}
	e.recordRun(ctx, AuditRun{
		OwnerID:        ownerID,
		Operation:      "transaction_write",
		PeriodsUpdated: result.PeriodsUpdated,
		ErrorCount:     len(result.Errors),
		StartedAt:      started,
	})
	return result, nil
}

// OnBudgetCreated materializes the new budget's period allocations through
// the configured horizon, then absorbs any pre-existing matching
// transactions into them.
func (e *Engine) OnBudgetCreated(ctx context.Context, b *domain.Budget) (*reconcile.RecalcResult, error) {
	return e.regenerate(ctx, b, "budget_created")
}

// OnBudgetCategoriesChanged refreshes allocations and rebuilds spending after
// the budget's tracked category set changed.
func (e *Engine) OnBudgetCategoriesChanged(ctx context.Context, b *domain.Budget) (*reconcile.RecalcResult, error) {
	return e.regenerate(ctx, b, "budget_categories_changed")
}

func (e *Engine) regenerate(ctx context.Context, b *domain.Budget, operation string) (*reconcile.RecalcResult, error) {
	if b == nil || b.ID == "" {
		return nil, fmt.Errorf("%s: missing budget: %w", operation, domain.ErrValidation)
	}
	started := time.Now()

	rangeStart, rangeEnd := e.generationWindow(b)
	if _, err := e.generator.Generate(ctx, b, rangeStart, rangeEnd); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	result, err := e.recalculator.Recalculate(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	e.recordRun(ctx, AuditRun{
		OwnerID:               b.OwnerID,
		BudgetID:              b.ID,
		Operation:             operation,
		PeriodsUpdated:        result.PeriodsUpdated,
		TransactionsProcessed: result.TransactionsProcessed,
		ErrorCount:            len(result.Errors),
		StartedAt:             started,
	})
	return result, nil
}

// OnBudgetDeleted deactivates the budget's allocations and re-homes every
// split that pointed at it. The budget must already be soft-deleted.
func (e *Engine) OnBudgetDeleted(ctx context.Context, b *domain.Budget) (*reassign.Result, error) {
	if b == nil || b.ID == "" {
		return nil, fmt.Errorf("budget_deleted: missing budget: %w", domain.ErrValidation)
	}
	started := time.Now()

	deactivated, err := e.allocations.DeactivateAllocations(ctx, b.OwnerID, b.ID)
	if err != nil {
		return nil, fmt.Errorf("budget_deleted: deactivating allocations: %w", err)
	}
	e.log.Info().
		Str("budget_id", b.ID).
		Int("deactivated", deactivated).
		Msg("Budget allocations deactivated")

	result, err := e.reassigner.Reassign(ctx, b.ID, b.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("budget_deleted: %w", err)
	}

	e.recordRun(ctx, AuditRun{
		OwnerID:          b.OwnerID,
		BudgetID:         b.ID,
		Operation:        "budget_deleted",
		SplitsReassigned: result.SplitsReassigned,
		ErrorCount:       len(result.Errors),
		StartedAt:        started,
	})
	return result, nil
}

// ExtendPeriods re-runs period generation with the horizon pushed
// monthsForward past today. With a budget ID only that budget is extended;
// otherwise every active budget of the owner is. Per-budget failures
// accumulate and the rest proceed.
func (e *Engine) ExtendPeriods(ctx context.Context, ownerID, budgetID string, monthsForward int) (*ExtendResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("extend_periods: missing owner: %w", domain.ErrValidation)
	}
	if monthsForward <= 0 {
		monthsForward = e.horizonMonths
	}
	started := time.Now()

	var budgets []*domain.Budget
	if budgetID != "" {
		b, err := e.budgets.GetBudget(ctx, ownerID, budgetID)
		if err != nil {
			return nil, fmt.Errorf("extend_periods: loading budget %s: %w", budgetID, err)
		}
		budgets = append(budgets, b)
	} else {
		all, err := e.budgets.ListActiveBudgets(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("extend_periods: listing budgets: %w", err)
		}
		budgets = all
	}

	result := &ExtendResult{}
	rangeEnd := addMonths(e.today(), monthsForward)
	for _, b := range budgets {
		rangeStart := b.StartDate
		end := rangeEnd
		if !b.IsOngoing && b.EndDate != nil && b.EndDate.Before(end) {
			end = *b.EndDate
		}
		if end.Before(rangeStart) {
			continue
		}
		allocations, err := e.generator.Generate(ctx, b, rangeStart, end)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("budget %s: %w", b.ID, err))
			continue
		}
		result.BudgetsProcessed++
		result.AllocationsUpserted += len(allocations)
	}

	e.recordRun(ctx, AuditRun{
		OwnerID:        ownerID,
		BudgetID:       budgetID,
		Operation:      "extend_periods",
		PeriodsUpdated: result.AllocationsUpserted,
		ErrorCount:     len(result.Errors),
		StartedAt:      started,
	})
	return result, nil
}

// generationWindow is the range allocations are materialized over: the
// budget's start through either its end date or today plus the horizon.
func (e *Engine) generationWindow(b *domain.Budget) (civil.Date, civil.Date) {
	end := addMonths(e.today(), e.horizonMonths)
	if !b.IsOngoing && b.EndDate != nil && b.EndDate.Before(end) {
		end = *b.EndDate
	}
	if end.Before(b.StartDate) {
		end = b.StartDate
	}
	return b.StartDate, end
}

func (e *Engine) recordRun(ctx context.Context, run AuditRun) {
	if e.audit == nil {
		return
	}
	run.RunID = uuid.NewString()
	run.FinishedAt = time.Now()
	if err := e.audit.RecordRun(ctx, run); err != nil {
		e.log.Warn().Err(err).Str("operation", run.Operation).Msg("Audit sink write failed")
	}
}

// addMonths shifts a date by n calendar months, normalizing overflow the way
// time.Date does (Jan 31 + 1 month = Mar 2/3).
func addMonths(d civil.Date, n int) civil.Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return civil.DateOf(t)
}
