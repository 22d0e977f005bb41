// Package export writes point-in-time snapshots of an owner's period
// allocations to Cloud Storage, one JSON object per export, under a dated
// path. Snapshots feed offline reporting and give a recovery point before
// bulk maintenance operations.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// snapshot is the JSON document written to the bucket.
type snapshot struct {
	OwnerID    string           `json:"owner_id"`
	ExportedAt time.Time        `json:"exported_at"`
	Budgets    []budgetSnapshot `json:"budgets"`
	Count      int              `json:"allocation_count"`
}

type budgetSnapshot struct {
	Budget      *domain.Budget             `json:"budget"`
	Allocations []*domain.PeriodAllocation `json:"allocations"`
}

// Snapshotter exports owner allocation snapshots to a GCS bucket.
type Snapshotter struct {
	budgets     store.BudgetStore
	allocations store.AllocationStore
	bucket      string
	log         zerolog.Logger
}

// NewSnapshotter creates an exporter writing into the given bucket.
func NewSnapshotter(budgets store.BudgetStore, allocations store.AllocationStore, bucket string, log zerolog.Logger) *Snapshotter {
	return &Snapshotter{
		budgets:     budgets,
		allocations: allocations,
		bucket:      bucket,
		log:         log,
	}
}

// Export writes one snapshot of every active budget's allocations for the
// owner and returns the object path.
func (s *Snapshotter) Export(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("export: missing owner: %w", domain.ErrValidation)
	}

	budgets, err := s.budgets.ListActiveBudgets(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("export: listing budgets: %w", err)
	}

	snap := snapshot{
		OwnerID:    ownerID,
		ExportedAt: time.Now().UTC(),
	}
	for _, b := range budgets {
		allocations, err := s.allocations.ListActiveAllocations(ctx, ownerID, b.ID)
		if err != nil {
			return "", fmt.Errorf("export: listing allocations for %s: %w", b.ID, err)
		}
		snap.Budgets = append(snap.Budgets, budgetSnapshot{Budget: b, Allocations: allocations})
		snap.Count += len(allocations)
	}

	objectName := fmt.Sprintf("snapshots/%s/%s/allocations.json",
		snap.ExportedAt.Format("2006/01/02"), ownerID)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("export: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("export: encoding snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("export: finalizing upload: %w", err)
	}

	s.log.Info().
		Str("owner_id", ownerID).
		Str("object", objectName).
		Int("allocations", snap.Count).
		Msg("Allocation snapshot exported")

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}
