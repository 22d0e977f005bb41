// Package memory provides an in-memory implementation of the store
// interfaces. It backs the test suites and single-node development runs;
// data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// Store is an in-memory document store. It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	budgets      map[string]*domain.Budget
	transactions map[string]*domain.Transaction
	allocations  map[string]*domain.PeriodAllocation
	periods      map[domain.PeriodType][]domain.SourcePeriod

	// batchCommits counts committed write batches across UpdateSplits,
	// UpsertAllocations, ApplySpendingDeltas and SetSpending.
	batchCommits int

	// FailListAllocationsFor injects a read failure for specific budget IDs.
	FailListAllocationsFor map[string]error
	// FailUpdateSplitsOnCall injects a commit failure on the nth (1-based)
	// UpdateSplits call.
	FailUpdateSplitsOnCall map[int]error

	updateSplitsCalls int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		budgets:      make(map[string]*domain.Budget),
		transactions: make(map[string]*domain.Transaction),
		allocations:  make(map[string]*domain.PeriodAllocation),
		periods:      make(map[domain.PeriodType][]domain.SourcePeriod),
	}
}

// PutBudget seeds or replaces a budget.
func (s *Store) PutBudget(b *domain.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.budgets[b.ID] = &cp
}

// PutTransaction seeds or replaces a transaction.
func (s *Store) PutTransaction(t *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.Splits = append([]domain.TransactionSplit(nil), t.Splits...)
	s.transactions[t.ID] = &cp
}

// PutPeriods seeds source periods of one granularity.
func (s *Store) PutPeriods(t domain.PeriodType, periods []domain.SourcePeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[t] = append(s.periods[t], periods...)
}

// GetAllocation returns a copy of one allocation, or domain.ErrNotFound.
func (s *Store) GetAllocation(id string) (*domain.PeriodAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocations[id]
	if !ok {
		return nil, fmt.Errorf("allocation %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// GetTransaction returns a copy of one transaction, or domain.ErrNotFound.
func (s *Store) GetTransaction(id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	cp.Splits = append([]domain.TransactionSplit(nil), t.Splits...)
	return &cp, nil
}

// BatchCommits returns how many write batches have been committed.
func (s *Store) BatchCommits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchCommits
}

// GetBudget implements store.BudgetStore.
func (s *Store) GetBudget(ctx context.Context, ownerID, budgetID string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetID]
	if !ok || b.OwnerID != ownerID {
		return nil, fmt.Errorf("budget %s: %w", budgetID, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// ListActiveBudgets implements store.BudgetStore.
func (s *Store) ListActiveBudgets(ctx context.Context, ownerID string) ([]*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Budget
	for _, b := range s.budgets {
		if b.OwnerID != ownerID || !b.IsActive {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetCatchAllBudget implements store.BudgetStore.
func (s *Store) GetCatchAllBudget(ctx context.Context, ownerID string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.budgets {
		if b.OwnerID == ownerID && b.IsActive && b.IsSystemCatchAll {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("catch-all budget for %s: %w", ownerID, domain.ErrNotFound)
}

// ListTransactions implements store.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, r *store.DateRange) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Transaction
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		if r != nil && !r.Contains(t.Date) {
			continue
		}
		cp := *t
		cp.Splits = append([]domain.TransactionSplit(nil), t.Splits...)
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListTransactionsByBudget implements store.TransactionStore.
func (s *Store) ListTransactionsByBudget(ctx context.Context, ownerID, budgetID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Transaction
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		for _, split := range t.Splits {
			if split.BudgetID == budgetID {
				cp := *t
				cp.Splits = append([]domain.TransactionSplit(nil), t.Splits...)
				result = append(result, &cp)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateSplits implements store.TransactionStore.
func (s *Store) UpdateSplits(ctx context.Context, updates []store.SplitUpdate) error {
	if len(updates) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(updates), store.MaxBatchSize, domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateSplitsCalls++
	if err := s.FailUpdateSplitsOnCall[s.updateSplitsCalls]; err != nil {
		return err
	}

	for _, u := range updates {
		t, ok := s.transactions[u.TransactionID]
		if !ok || t.OwnerID != u.OwnerID {
			return fmt.Errorf("transaction %s: %w", u.TransactionID, domain.ErrNotFound)
		}
	}
	for _, u := range updates {
		t := s.transactions[u.TransactionID]
		t.Splits = append([]domain.TransactionSplit(nil), u.Splits...)
		t.UpdatedAt = time.Now()
	}
	s.batchCommits++
	return nil
}

// UpsertAllocations implements store.AllocationStore.
func (s *Store) UpsertAllocations(ctx context.Context, allocations []*domain.PeriodAllocation) error {
	if len(allocations) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(allocations), store.MaxBatchSize, domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, a := range allocations {
		cp := *a
		if existing, ok := s.allocations[a.ID]; ok {
			// Regeneration path: period bounds and allocated amount refresh,
			// spent survives.
			cp.Spent = existing.Spent
			cp.Remaining = cp.AllocatedAmount - existing.Spent
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		s.allocations[cp.ID] = &cp
	}
	s.batchCommits++
	return nil
}

// ListActiveAllocations implements store.AllocationStore.
func (s *Store) ListActiveAllocations(ctx context.Context, ownerID, budgetID string) ([]*domain.PeriodAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.FailListAllocationsFor[budgetID]; err != nil {
		return nil, err
	}
	var result []*domain.PeriodAllocation
	for _, a := range s.allocations {
		if a.OwnerID != ownerID || a.BudgetID != budgetID || !a.IsActive {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ApplySpendingDeltas implements store.AllocationStore. Spent and remaining
// move together under one lock, mirroring the atomic increment primitive of
// the production store.
func (s *Store) ApplySpendingDeltas(ctx context.Context, deltas []store.SpendingDelta) error {
	if len(deltas) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(deltas), store.MaxBatchSize, domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		if _, ok := s.allocations[d.AllocationID]; !ok {
			return fmt.Errorf("allocation %s: %w", d.AllocationID, domain.ErrNotFound)
		}
	}
	now := time.Now()
	for _, d := range deltas {
		a := s.allocations[d.AllocationID]
		a.Spent = domain.RoundToCents(a.Spent + d.Delta)
		a.Remaining = domain.RoundToCents(a.AllocatedAmount - a.Spent)
		a.UpdatedAt = now
	}
	s.batchCommits++
	return nil
}

// SetSpending implements store.AllocationStore.
func (s *Store) SetSpending(ctx context.Context, values []store.SpendingValue) error {
	if len(values) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(values), store.MaxBatchSize, domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		if _, ok := s.allocations[v.AllocationID]; !ok {
			return fmt.Errorf("allocation %s: %w", v.AllocationID, domain.ErrNotFound)
		}
	}
	now := time.Now()
	for _, v := range values {
		a := s.allocations[v.AllocationID]
		a.Spent = v.Spent
		a.Remaining = v.Remaining
		a.UpdatedAt = now
	}
	s.batchCommits++
	return nil
}

// DeactivateAllocations implements store.AllocationStore.
func (s *Store) DeactivateAllocations(ctx context.Context, ownerID, budgetID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := time.Now()
	for _, a := range s.allocations {
		if a.OwnerID == ownerID && a.BudgetID == budgetID && a.IsActive {
			a.IsActive = false
			a.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// GetSourcePeriods implements store.PeriodProvider.
func (s *Store) GetSourcePeriods(ctx context.Context, t domain.PeriodType, r store.DateRange) ([]domain.SourcePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SourcePeriod
	for _, p := range s.periods[t] {
		if r.Contains(p.StartDate) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result, nil
}

var (
	_ store.BudgetStore      = (*Store)(nil)
	_ store.TransactionStore = (*Store)(nil)
	_ store.AllocationStore  = (*Store)(nil)
	_ store.PeriodProvider   = (*Store)(nil)
)
