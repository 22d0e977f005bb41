// Package firestore implements the engine's store interfaces on Cloud
// Firestore. Documents live in four collections; dates are stored as
// YYYY-MM-DD strings so range filters order correctly, and spending writes
// use field increments so concurrent reconciliations cannot lose updates.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
)

const (
	budgetsCollection      = "budgets"
	transactionsCollection = "transactions"
	allocationsCollection  = "budget_periods"
	periodsCollection      = "source_periods"
)

// Store is a Firestore-backed implementation of the engine's repositories.
type Store struct {
	client *firestore.Client
	log    zerolog.Logger
}

// NewStore connects to Firestore in the given project.
func NewStore(ctx context.Context, projectID string, log zerolog.Logger) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating client: %w", err)
	}
	return &Store{client: client, log: log}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
