package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// UpsertAllocations implements store.AllocationStore. Existing records keep
// their accumulated spent; only the period metadata and allocated amount
// refresh, with remaining recomputed against the surviving spend.
func (s *Store) UpsertAllocations(ctx context.Context, allocations []*domain.PeriodAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	if len(allocations) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(allocations), store.MaxBatchSize, domain.ErrValidation)
	}

	refs := make([]*firestore.DocumentRef, len(allocations))
	for i, a := range allocations {
		refs[i] = s.client.Collection(allocationsCollection).Doc(a.ID)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return fmt.Errorf("reading existing allocations: %w", err)
	}

	batch := s.client.Batch()
	now := time.Now()
	for i, a := range allocations {
		row := allocationRow{
			ID:              a.ID,
			BudgetID:        a.BudgetID,
			OwnerID:         a.OwnerID,
			SourcePeriodID:  a.SourcePeriodID,
			PeriodType:      string(a.PeriodType),
			PeriodStart:     encodeDate(a.PeriodStart),
			PeriodEnd:       encodeDate(a.PeriodEnd),
			AllocatedAmount: a.AllocatedAmount,
			Spent:           0,
			Remaining:       a.AllocatedAmount,
			IsActive:        a.IsActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if snaps[i].Exists() {
			var existing allocationRow
			if err := snaps[i].DataTo(&existing); err != nil {
				return fmt.Errorf("decoding allocation %s: %w", a.ID, err)
			}
			row.Spent = existing.Spent
			row.Remaining = domain.RoundToCents(a.AllocatedAmount - existing.Spent)
			row.CreatedAt = existing.CreatedAt
		}
		batch.Set(refs[i], row)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("committing allocation upserts: %w", err)
	}
	return nil
}

// ListActiveAllocations implements store.AllocationStore.
func (s *Store) ListActiveAllocations(ctx context.Context, ownerID, budgetID string) ([]*domain.PeriodAllocation, error) {
	iter := s.client.Collection(allocationsCollection).
		Where("owner_id", "==", ownerID).
		Where("budget_id", "==", budgetID).
		Where("is_active", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var allocations []*domain.PeriodAllocation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing allocations for %s: %w", budgetID, err)
		}
		var row allocationRow
		if err := snap.DataTo(&row); err != nil {
			return nil, fmt.Errorf("decoding allocation %s: %w", snap.Ref.ID, err)
		}
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, nil
}

// ApplySpendingDeltas implements store.AllocationStore. Spent and remaining
// move via server-side field increments inside one batch, so concurrent
// reconciliations never read-modify-write each other's updates away.
func (s *Store) ApplySpendingDeltas(ctx context.Context, deltas []store.SpendingDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	if len(deltas) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(deltas), store.MaxBatchSize, domain.ErrValidation)
	}

	batch := s.client.Batch()
	now := time.Now()
	for _, d := range deltas {
		ref := s.client.Collection(allocationsCollection).Doc(d.AllocationID)
		batch.Update(ref, []firestore.Update{
			{Path: "spent", Value: firestore.Increment(d.Delta)},
			{Path: "remaining", Value: firestore.Increment(-d.Delta)},
			{Path: "updated_at", Value: now},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("committing spending deltas: %w", err)
	}
	return nil
}

// SetSpending implements store.AllocationStore. Absolute overwrite, used by
// the full recompute path.
func (s *Store) SetSpending(ctx context.Context, values []store.SpendingValue) error {
	if len(values) == 0 {
		return nil
	}
	if len(values) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(values), store.MaxBatchSize, domain.ErrValidation)
	}

	batch := s.client.Batch()
	now := time.Now()
	for _, v := range values {
		ref := s.client.Collection(allocationsCollection).Doc(v.AllocationID)
		batch.Update(ref, []firestore.Update{
			{Path: "spent", Value: v.Spent},
			{Path: "remaining", Value: v.Remaining},
			{Path: "updated_at", Value: now},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("committing spending values: %w", err)
	}
	return nil
}

// DeactivateAllocations implements store.AllocationStore.
func (s *Store) DeactivateAllocations(ctx context.Context, ownerID, budgetID string) (int, error) {
	allocations, err := s.ListActiveAllocations(ctx, ownerID, budgetID)
	if err != nil {
		return 0, err
	}

	count := 0
	now := time.Now()
	for lo := 0; lo < len(allocations); lo += store.MaxBatchSize {
		hi := lo + store.MaxBatchSize
		if hi > len(allocations) {
			hi = len(allocations)
		}
		batch := s.client.Batch()
		for _, a := range allocations[lo:hi] {
			ref := s.client.Collection(allocationsCollection).Doc(a.ID)
			batch.Update(ref, []firestore.Update{
				{Path: "is_active", Value: false},
				{Path: "updated_at", Value: now},
			})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return count, fmt.Errorf("deactivating allocations [%d:%d]: %w", lo, hi, err)
		}
		count += hi - lo
	}
	return count, nil
}

var _ store.AllocationStore = (*Store)(nil)
