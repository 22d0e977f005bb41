package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-engine/internal/domain"
	"github.com/dvloznov/budget-engine/internal/store"
)

// GetSourcePeriods implements store.PeriodProvider. Membership is by period
// start date, matching the external boundary generator's contract.
func (s *Store) GetSourcePeriods(ctx context.Context, t domain.PeriodType, r store.DateRange) ([]domain.SourcePeriod, error) {
	iter := s.client.Collection(periodsCollection).
		Where("type", "==", string(t)).
		Where("start_date", ">=", encodeDate(r.Start)).
		Where("start_date", "<=", encodeDate(r.End)).
		OrderBy("start_date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var periods []domain.SourcePeriod
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying %s periods: %w", t, err)
		}
		var row periodRow
		if err := snap.DataTo(&row); err != nil {
			return nil, fmt.Errorf("decoding period %s: %w", snap.Ref.ID, err)
		}
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, nil
}

var _ store.PeriodProvider = (*Store)(nil)
