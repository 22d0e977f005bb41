// Package reassign re-homes transaction splits left behind by a deleted
// budget onto the best remaining destination.
package reassign

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// Result reports the outcome of one reassignment run. BudgetAssignments is a
// histogram of destination budget IDs (including "unassigned"), one count per
// reassigned split, kept for auditability.
type Result struct {
	TransactionsReassigned int
	SplitsReassigned       int
	BudgetAssignments      map[string]int
	Errors                 []error
}

// Engine moves every split pointing at a soft-deleted budget to a
// replacement: the best remaining regular budget covering the transaction
// date, else the owner's catch-all, else the unassigned sentinel.
type Engine struct {
	budgets      store.BudgetStore
	transactions store.TransactionStore
	matcher      category.Matcher
	log          zerolog.Logger
}

// NewEngine creates a reassignment engine over the given stores and matcher.
func NewEngine(budgets store.BudgetStore, transactions store.TransactionStore, matcher category.Matcher, log zerolog.Logger) *Engine {
	return &Engine{
		budgets:      budgets,
		transactions: transactions,
		matcher:      matcher,
		log:          log,
	}
}

// Reassign finds every transaction owned by ownerID with a split pointing at
// the deleted budget and repoints those splits. The budget must already be
// soft-deleted; reassigning splits away from a live budget would silently
// drop its spending.
//
// Destination selection is deterministic: among active regular budgets whose
// window contains the transaction date, one tracking the split's category
// wins over one that does not, then earlier start date, then smaller ID.
// With no regular candidate the split falls to the owner's catch-all, and
// with no catch-all to the unassigned sentinel.
//
// Split updates commit in sequential batches bounded by the store's batch
// limit; a failed batch is recorded in Errors and the rest continue.
func (e *Engine) Reassign(ctx context.Context, deletedBudgetID, ownerID string) (*Result, error) {
	if deletedBudgetID == "" || ownerID == "" {
		return nil, fmt.Errorf("reassign: missing budget or owner ID: %w", domain.ErrValidation)
	}

	deleted, err := e.budgets.GetBudget(ctx, ownerID, deletedBudgetID)
	if err != nil {
		return nil, fmt.Errorf("reassign: loading budget %s: %w", deletedBudgetID, err)
	}
	if deleted.IsActive {
		return nil, fmt.Errorf("reassign: budget %s is still active: %w", deletedBudgetID, domain.ErrPreconditionFailed)
	}

	candidates, err := e.budgets.ListActiveBudgets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("reassign: listing budgets: %w", err)
	}
	regular := candidates[:0]
	for _, b := range candidates {
		if b.ID != deletedBudgetID && !b.IsSystemCatchAll {
			regular = append(regular, b)
		}
	}
	sort.Slice(regular, func(i, j int) bool {
		if regular[i].StartDate != regular[j].StartDate {
			return regular[i].StartDate.Before(regular[j].StartDate)
		}
		return regular[i].ID < regular[j].ID
	})

	catchAllID := domain.BudgetUnassigned
	if catchAll, err := e.budgets.GetCatchAllBudget(ctx, ownerID); err == nil {
		catchAllID = catchAll.ID
	}

	txs, err := e.transactions.ListTransactionsByBudget(ctx, ownerID, deletedBudgetID)
	if err != nil {
		return nil, fmt.Errorf("reassign: listing transactions: %w", err)
	}

	result := &Result{BudgetAssignments: make(map[string]int)}
	var updates []store.SplitUpdate

	for _, tx := range txs {
		splits := append([]domain.TransactionSplit(nil), tx.Splits...)
		touched := false
		for i, split := range splits {
			if split.BudgetID != deletedBudgetID {
				continue
			}
			dest := e.pickDestination(split, tx, regular, catchAllID)
			splits[i].BudgetID = dest
			result.BudgetAssignments[dest]++
			result.SplitsReassigned++
			touched = true
		}
		if touched {
			result.TransactionsReassigned++
			updates = append(updates, store.SplitUpdate{
				OwnerID:       tx.OwnerID,
				TransactionID: tx.ID,
				Splits:        splits,
			})
		}
	}

	for lo := 0; lo < len(updates); lo += store.MaxBatchSize {
		hi := lo + store.MaxBatchSize
		if hi > len(updates) {
			hi = len(updates)
		}
		if err := e.transactions.UpdateSplits(ctx, updates[lo:hi]); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("committing batch [%d:%d]: %w", lo, hi, err))
		}
	}

	e.log.Info().
		Str("owner_id", ownerID).
		Str("deleted_budget_id", deletedBudgetID).
		Int("transactions", result.TransactionsReassigned).
		Int("splits", result.SplitsReassigned).
		Int("errors", len(result.Errors)).
		Msg("Transaction reassignment finished")

	return result, nil
}

// pickDestination returns the budget ID the split moves to. Candidates are
// pre-sorted, so the first date-matching budget tracking the split's category
// wins; failing that, the first date-matching budget of any category.
func (e *Engine) pickDestination(split domain.TransactionSplit, tx *domain.Transaction, regular []*domain.Budget, catchAllID string) string {
	fallback := ""
	for _, b := range regular {
		if !b.ContainsDate(tx.Date) {
			continue
		}
		if e.matcher.Match(split, b.CategoryIDs) {
			return b.ID
		}
		if fallback == "" {
			fallback = b.ID
		}
	}
	if fallback != "" {
		return fallback
	}
	return catchAllID
}
