// Package reconcile keeps period allocation spend figures consistent with the
// transaction log: incrementally on every transaction write, and by full
// recomputation when a budget's category set or lifecycle changes.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// Result reports the outcome of one reconciliation call. Per-budget failures
// accumulate in Errors; the call keeps processing the remaining budgets.
type Result struct {
	PeriodsUpdated  int
	BudgetsAffected []string
	Errors          []error
}

// Reconciler applies incremental spending deltas to period allocations as
// transactions are created, updated or deleted.
type Reconciler struct {
	allocations store.AllocationStore
	log         zerolog.Logger
}

// NewReconciler creates a reconciler backed by the given allocation store.
func NewReconciler(allocations store.AllocationStore, log zerolog.Logger) *Reconciler {
	return &Reconciler{allocations: allocations, log: log}
}

// Reconcile computes the per-budget spending delta between the old and new
// versions of one transaction and applies it to every active allocation whose
// period contains the transaction date - up to one per granularity. A missing
// side is treated as all-zero, so create, update and delete are the same
// operation with one side omitted.
//
// Deltas for one budget commit as a single atomic batch of increments; a
// failure on one budget is collected and the others proceed. Zero matching
// allocations is not an error: it means period generation has not caught up,
// which a later generation pass followed by recalculation repairs.
func (r *Reconciler) Reconcile(ctx context.Context, oldTx, newTx *domain.Transaction, ownerID string) (*Result, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("reconcile: missing owner: %w", domain.ErrValidation)
	}
	result := &Result{}
	if oldTx == nil && newTx == nil {
		return result, nil
	}

	txDate := transactionDate(oldTx, newTx)
	if !txDate.IsValid() {
		return nil, fmt.Errorf("reconcile: transaction has no valid date: %w", domain.ErrValidation)
	}

	oldSpending := domain.SpendingByBudget(oldTx)
	newSpending := domain.SpendingByBudget(newTx)

	deltas := make(map[string]float64)
	for budgetID, amount := range newSpending {
		deltas[budgetID] += amount
	}
	for budgetID, amount := range oldSpending {
		deltas[budgetID] -= amount
	}

	budgetIDs := make([]string, 0, len(deltas))
	for budgetID, delta := range deltas {
		if domain.RoundToCents(delta) == 0 {
			continue
		}
		budgetIDs = append(budgetIDs, budgetID)
	}
	sort.Strings(budgetIDs)

	for _, budgetID := range budgetIDs {
		delta := domain.RoundToCents(deltas[budgetID])

		allocations, err := r.allocations.ListActiveAllocations(ctx, ownerID, budgetID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("budget %s: listing allocations: %w", budgetID, err))
			continue
		}

		var updates []store.SpendingDelta
		for _, a := range allocations {
			if a.ContainsDate(txDate) {
				updates = append(updates, store.SpendingDelta{AllocationID: a.ID, Delta: delta})
			}
		}

		if len(updates) == 0 {
			r.log.Warn().
				Str("owner_id", ownerID).
				Str("budget_id", budgetID).
				Str("date", txDate.String()).
				Msg("No allocation covers transaction date; period generation has not caught up")
			continue
		}

		if err := r.allocations.ApplySpendingDeltas(ctx, updates); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("budget %s: applying deltas: %w", budgetID, err))
			continue
		}

		result.PeriodsUpdated += len(updates)
		result.BudgetsAffected = append(result.BudgetsAffected, budgetID)

		r.log.Debug().
			Str("budget_id", budgetID).
			Float64("delta", delta).
			Int("periods", len(updates)).
			Msg("Spending delta applied")
	}

	return result, nil
}

// transactionDate picks the date the reconciliation keys on: the new side
// when present, otherwise the old.
func transactionDate(oldTx, newTx *domain.Transaction) civil.Date {
	if newTx != nil {
		return newTx.Date
	}
	return oldTx.Date
}
