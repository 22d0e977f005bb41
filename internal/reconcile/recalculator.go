package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/category"
	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// RecalcResult reports the outcome of one historical recalculation.
type RecalcResult struct {
	TransactionsProcessed int
	TotalSpendingFound    float64
	PeriodsUpdated        int
	Errors                []error
}

// Recalculator rebuilds the spend figures of a budget's allocations from the
// transaction log. It runs when a budget is created (to absorb pre-existing
// matching transactions) or when its category set changes.
type Recalculator struct {
	budgets      store.BudgetStore
	transactions store.TransactionStore
	allocations  store.AllocationStore
	matcher      category.Matcher
	log          zerolog.Logger
}

// NewRecalculator creates a recalculator over the given stores and category
// matcher.
func NewRecalculator(budgets store.BudgetStore, transactions store.TransactionStore, allocations store.AllocationStore, matcher category.Matcher, log zerolog.Logger) *Recalculator {
	return &Recalculator{
		budgets:      budgets,
		transactions: transactions,
		allocations:  allocations,
		matcher:      matcher,
		log:          log,
	}
}

// Recalculate scans the owner's approved expense transactions, sums the split
// amounts matching the budget's categories into a fresh per-allocation map,
// and overwrites every active allocation with its computed absolute spend.
//
// This is a full replace, not an additive overlay: allocations whose
// transactions no longer match after a category removal converge back to
// zero. Matching splits that were unassigned or parked on the catch-all are
// claimed for this budget so later incremental reconciliations stay
// consistent. Writes are chunked at the store's batch bound; a failed chunk
// is collected and the rest continue.
func (r *Recalculator) Recalculate(ctx context.Context, b *domain.Budget) (*RecalcResult, error) {
	if b == nil || b.ID == "" {
		return nil, fmt.Errorf("recalculate: missing budget: %w", domain.ErrValidation)
	}
	if len(b.CategoryIDs) == 0 && !b.IsSystemCatchAll {
		r.log.Warn().Str("budget_id", b.ID).Msg("Budget tracks no categories; recalculation will zero its spending")
	}

	result := &RecalcResult{}

	allocations, err := r.allocations.ListActiveAllocations(ctx, b.OwnerID, b.ID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: listing allocations: %w", err)
	}

	catchAllID := ""
	if !b.IsSystemCatchAll {
		catchAll, err := r.budgets.GetCatchAllBudget(ctx, b.OwnerID)
		switch {
		case err == nil:
			catchAllID = catchAll.ID
		case errors.Is(err, domain.ErrNotFound):
			// No catch-all configured for this owner.
		default:
			return nil, fmt.Errorf("recalculate: looking up catch-all: %w", err)
		}
	}

	txs, err := r.transactions.ListTransactions(ctx, b.OwnerID, budgetDateRange(b))
	if err != nil {
		return nil, fmt.Errorf("recalculate: listing transactions: %w", err)
	}

	spendByAllocation := make(map[string]float64)
	var claims []store.SplitUpdate

	for _, tx := range txs {
		if !tx.CountsTowardSpending() {
			continue
		}

		var matched float64
		claimed := false
		splits := append([]domain.TransactionSplit(nil), tx.Splits...)
		for i, split := range splits {
			if !r.matcher.Match(split, b.CategoryIDs) {
				continue
			}
			matched += split.Amount
			if claimable(split.BudgetID, b, catchAllID) {
				splits[i].BudgetID = b.ID
				claimed = true
			}
		}
		if matched == 0 {
			continue
		}

		result.TransactionsProcessed++
		result.TotalSpendingFound += matched
		for _, a := range allocations {
			if a.ContainsDate(tx.Date) {
				spendByAllocation[a.ID] += matched
			}
		}
		if claimed {
			claims = append(claims, store.SplitUpdate{
				OwnerID:       tx.OwnerID,
				TransactionID: tx.ID,
				Splits:        splits,
			})
		}
	}
	result.TotalSpendingFound = domain.RoundToCents(result.TotalSpendingFound)

	var values []store.SpendingValue
	for _, a := range allocations {
		spent := domain.RoundToCents(spendByAllocation[a.ID])
		if spent == a.Spent {
			continue
		}
		values = append(values, store.SpendingValue{
			AllocationID: a.ID,
			Spent:        spent,
			Remaining:    domain.RoundToCents(a.AllocatedAmount - spent),
		})
	}
	sort.Slice(values, func(i, j int) bool { return values[i].AllocationID < values[j].AllocationID })

	for lo := 0; lo < len(values); lo += store.MaxBatchSize {
		hi := lo + store.MaxBatchSize
		if hi > len(values) {
			hi = len(values)
		}
		if err := r.allocations.SetSpending(ctx, values[lo:hi]); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("writing spending [%d:%d]: %w", lo, hi, err))
			continue
		}
		result.PeriodsUpdated += hi - lo
	}

	for lo := 0; lo < len(claims); lo += store.MaxBatchSize {
		hi := lo + store.MaxBatchSize
		if hi > len(claims) {
			hi = len(claims)
		}
		if err := r.transactions.UpdateSplits(ctx, claims[lo:hi]); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("claiming splits [%d:%d]: %w", lo, hi, err))
		}
	}

	r.log.Info().
		Str("budget_id", b.ID).
		Int("transactions", result.TransactionsProcessed).
		Float64("total_spending", result.TotalSpendingFound).
		Int("periods_updated", result.PeriodsUpdated).
		Int("split_claims", len(claims)).
		Int("errors", len(result.Errors)).
		Msg("Historical recalculation finished")

	return result, nil
}

// claimable reports whether a matching split should be repointed at the
// budget under recalculation: it is unassigned, or parked on the owner's
// catch-all while a regular budget now tracks its category.
func claimable(splitBudgetID string, b *domain.Budget, catchAllID string) bool {
	if b.IsSystemCatchAll {
		return splitBudgetID == "" || splitBudgetID == domain.BudgetUnassigned
	}
	if splitBudgetID == "" || splitBudgetID == domain.BudgetUnassigned {
		return true
	}
	return catchAllID != "" && splitBudgetID == catchAllID
}

// budgetDateRange bounds the transaction scan to the budget's active window.
// Ongoing budgets scan to an effectively unbounded horizon.
func budgetDateRange(b *domain.Budget) *store.DateRange {
	end := civil.Date{Year: 9999, Month: time.December, Day: 31}
	if !b.IsOngoing && b.EndDate != nil {
		end = *b.EndDate
	}
	return &store.DateRange{Start: b.StartDate, End: end}
}
