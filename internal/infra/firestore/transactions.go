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

// ListTransactions implements store.TransactionStore. The optional range
// filters on the stored date string, both ends inclusive.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, r *store.DateRange) ([]*domain.Transaction, error) {
	q := s.client.Collection(transactionsCollection).Where("owner_id", "==", ownerID)
	if r != nil {
		q = q.Where("date", ">=", encodeDate(r.Start)).Where("date", "<=", encodeDate(r.End))
	}
	return s.queryTransactions(ctx, q)
}

// ListTransactionsByBudget implements store.TransactionStore. It relies on
// the denormalized split_budget_ids array.
func (s *Store) ListTransactionsByBudget(ctx context.Context, ownerID, budgetID string) ([]*domain.Transaction, error) {
	q := s.client.Collection(transactionsCollection).
		Where("owner_id", "==", ownerID).
		Where("split_budget_ids", "array-contains", budgetID)
	return s.queryTransactions(ctx, q)
}

func (s *Store) queryTransactions(ctx context.Context, q firestore.Query) ([]*domain.Transaction, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var txs []*domain.Transaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying transactions: %w", err)
		}
		var row transactionRow
		if err := snap.DataTo(&row); err != nil {
			return nil, fmt.Errorf("decoding transaction %s: %w", snap.Ref.ID, err)
		}
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// UpdateSplits implements store.TransactionStore. All updates commit in one
// write batch, so a batch either lands whole or not at all.
func (s *Store) UpdateSplits(ctx context.Context, updates []store.SplitUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if len(updates) > store.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds %d: %w", len(updates), store.MaxBatchSize, domain.ErrValidation)
	}

	batch := s.client.Batch()
	now := time.Now()
	for _, u := range updates {
		rows, budgetIDs := splitRows(u.Splits)
		ref := s.client.Collection(transactionsCollection).Doc(u.TransactionID)
		batch.Update(ref, []firestore.Update{
			{Path: "splits", Value: rows},
			{Path: "split_budget_ids", Value: budgetIDs},
			{Path: "updated_at", Value: now},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("committing split updates: %w", err)
	}
	return nil
}

var _ store.TransactionStore = (*Store)(nil)
