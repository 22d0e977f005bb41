// Package store defines the document-store interfaces the engine components
// depend on. Concrete implementations live under internal/infra (Firestore)
// and internal/store/memory; components never touch a storage client directly.
package store

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// MaxBatchSize is the document store's atomic batch commit bound. Bulk
// operations chunk their writes at this size; each chunk commits
// independently.
const MaxBatchSize = 500

// DateRange is an inclusive date interval used by range queries.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// Contains reports whether d falls inside the range, both ends inclusive.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// BudgetStore reads budget documents.
type BudgetStore interface {
	// GetBudget returns the budget or domain.ErrNotFound.
	GetBudget(ctx context.Context, ownerID, budgetID string) (*domain.Budget, error)

	// ListActiveBudgets returns the owner's active (non-deleted) budgets.
	ListActiveBudgets(ctx context.Context, ownerID string) ([]*domain.Budget, error)

	// GetCatchAllBudget returns the owner's system catch-all budget or
	// domain.ErrNotFound when none exists.
	GetCatchAllBudget(ctx context.Context, ownerID string) (*domain.Budget, error)
}

// SplitUpdate replaces the split list of one transaction.
type SplitUpdate struct {
	OwnerID       string
	TransactionID string
	Splits        []domain.TransactionSplit
}

// TransactionStore reads transactions and writes split reassignments.
type TransactionStore interface {
	// ListTransactions returns the owner's transactions, bounded by the date
	// range when non-nil (inclusive both ends).
	ListTransactions(ctx context.Context, ownerID string, r *DateRange) ([]*domain.Transaction, error)

	// ListTransactionsByBudget returns transactions with at least one split
	// pointing at the given budget.
	ListTransactionsByBudget(ctx context.Context, ownerID, budgetID string) ([]*domain.Transaction, error)

	// UpdateSplits commits one atomic batch of split replacements. The batch
	// must not exceed MaxBatchSize.
	UpdateSplits(ctx context.Context, updates []SplitUpdate) error
}

// SpendingDelta is an increment applied to one allocation's spent figure.
// The store applies it with an atomic increment primitive, never
// read-modify-write, so concurrent reconciliations cannot lose updates.
type SpendingDelta struct {
	AllocationID string
	Delta        float64
}

// SpendingValue is an absolute overwrite of one allocation's spend, used by
// full recalculation.
type SpendingValue struct {
	AllocationID string
	Spent        float64
	Remaining    float64
}

// AllocationStore reads and writes period allocation documents.
type AllocationStore interface {
	// UpsertAllocations writes allocations keyed by their composite IDs in
	// one atomic batch (≤ MaxBatchSize). Re-upserting an existing ID
	// overwrites allocated amount and period bounds but preserves spent.
	UpsertAllocations(ctx context.Context, allocations []*domain.PeriodAllocation) error

	// ListActiveAllocations returns the active allocations for one budget.
	ListActiveAllocations(ctx context.Context, ownerID, budgetID string) ([]*domain.PeriodAllocation, error)

	// ApplySpendingDeltas increments spent (and decrements remaining) on each
	// allocation in one atomic batch (≤ MaxBatchSize).
	ApplySpendingDeltas(ctx context.Context, deltas []SpendingDelta) error

	// SetSpending overwrites spent/remaining on each allocation in one atomic
	// batch (≤ MaxBatchSize).
	SetSpending(ctx context.Context, values []SpendingValue) error

	// DeactivateAllocations flips IsActive off for every allocation of the
	// budget and returns how many were touched.
	DeactivateAllocations(ctx context.Context, ownerID, budgetID string) (int, error)
}

// PeriodProvider hands back externally generated calendar periods.
type PeriodProvider interface {
	// GetSourcePeriods returns periods of the given type whose start date
	// falls within the range. Selection is by start-date membership, not
	// overlap: a period starting just before the range is excluded even when
	// it overlaps.
	GetSourcePeriods(ctx context.Context, t domain.PeriodType, r DateRange) ([]domain.SourcePeriod, error)
}
