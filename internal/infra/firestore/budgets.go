package firestore

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// GetBudget implements store.BudgetStore.
func (s *Store) GetBudget(ctx context.Context, ownerID, budgetID string) (*domain.Budget, error) {
	snap, err := s.client.Collection(budgetsCollection).Doc(budgetID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("budget %s: %w", budgetID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("budget %s: %w", budgetID, err)
	}

	var row budgetRow
	if err := snap.DataTo(&row); err != nil {
		return nil, fmt.Errorf("budget %s: decoding: %w", budgetID, err)
	}
	if row.OwnerID != ownerID {
		return nil, fmt.Errorf("budget %s: %w", budgetID, domain.ErrNotFound)
	}
	return row.toDomain()
}

// ListActiveBudgets implements store.BudgetStore.
func (s *Store) ListActiveBudgets(ctx context.Context, ownerID string) ([]*domain.Budget, error) {
	iter := s.client.Collection(budgetsCollection).
		Where("owner_id", "==", ownerID).
		Where("is_active", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var budgets []*domain.Budget
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing budgets for %s: %w", ownerID, err)
		}
		var row budgetRow
		if err := snap.DataTo(&row); err != nil {
			return nil, fmt.Errorf("decoding budget %s: %w", snap.Ref.ID, err)
		}
		b, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

// GetCatchAllBudget implements store.BudgetStore.
func (s *Store) GetCatchAllBudget(ctx context.Context, ownerID string) (*domain.Budget, error) {
	iter := s.client.Collection(budgetsCollection).
		Where("owner_id", "==", ownerID).
		Where("is_active", "==", true).
		Where("is_system_catch_all", "==", true).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("catch-all budget for %s: %w", ownerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catch-all budget for %s: %w", ownerID, err)
	}

	var row budgetRow
	if err := snap.DataTo(&row); err != nil {
		return nil, fmt.Errorf("decoding budget %s: %w", snap.Ref.ID, err)
	}
	return row.toDomain()
}

var _ store.BudgetStore = (*Store)(nil)
