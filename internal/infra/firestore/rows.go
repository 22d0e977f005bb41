package firestore

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// Dates are stored as YYYY-MM-DD strings. Lexicographic order matches
// chronological order, so Firestore range filters work on these fields.
func encodeDate(d civil.Date) string {
	return d.String()
}

func decodeDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return d, nil
}

type budgetRow struct {
	ID               string   `firestore:"id"`
	OwnerID          string   `firestore:"owner_id"`
	Name             string   `firestore:"name"`
	Period           string   `firestore:"period"`
	Amount           float64  `firestore:"amount"`
	CategoryIDs      []string `firestore:"category_ids"`
	StartDate        string   `firestore:"start_date"`
	EndDate          string   `firestore:"end_date"`
	IsOngoing        bool     `firestore:"is_ongoing"`
	IsSystemCatchAll bool     `firestore:"is_system_catch_all"`
	IsActive         bool     `firestore:"is_active"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (r budgetRow) toDomain() (*domain.Budget, error) {
	start, err := decodeDate(r.StartDate)
	if err != nil {
		return nil, err
	}
	b := &domain.Budget{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Name:             r.Name,
		Period:           domain.PeriodType(r.Period),
		Amount:           r.Amount,
		CategoryIDs:      r.CategoryIDs,
		StartDate:        start,
		IsOngoing:        r.IsOngoing,
		IsSystemCatchAll: r.IsSystemCatchAll,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.EndDate != "" {
		end, err := decodeDate(r.EndDate)
		if err != nil {
			return nil, err
		}
		b.EndDate = &end
	}
	return b, nil
}

type splitRow struct {
	Amount             float64 `firestore:"amount"`
	CategoryID         string  `firestore:"category_id"`
	DetailedCategoryID string  `firestore:"detailed_category_id"`
	BudgetID           string  `firestore:"budget_id"`
}

type transactionRow struct {
	ID          string     `firestore:"id"`
	OwnerID     string     `firestore:"owner_id"`
	Date        string     `firestore:"date"`
	Description string     `firestore:"description"`
	Amount      float64    `firestore:"amount"`
	Status      string     `firestore:"status"`
	Type        string     `firestore:"type"`
	Splits      []splitRow `firestore:"splits"`

	// SplitBudgetIDs denormalizes the budget IDs of Splits so
	// array-contains queries can find a budget's transactions without
	// scanning nested fields.
	SplitBudgetIDs []string `firestore:"split_budget_ids"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (r transactionRow) toDomain() (*domain.Transaction, error) {
	d, err := decodeDate(r.Date)
	if err != nil {
		return nil, err
	}
	t := &domain.Transaction{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Date:        d,
		Description: r.Description,
		Amount:      r.Amount,
		Status:      domain.TransactionStatus(r.Status),
		Type:        domain.TransactionType(r.Type),
		Splits:      make([]domain.TransactionSplit, 0, len(r.Splits)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, s := range r.Splits {
		t.Splits = append(t.Splits, domain.TransactionSplit{
			Amount:             s.Amount,
			CategoryID:         s.CategoryID,
			DetailedCategoryID: s.DetailedCategoryID,
			BudgetID:           s.BudgetID,
		})
	}
	return t, nil
}

func splitRows(splits []domain.TransactionSplit) ([]splitRow, []string) {
	rows := make([]splitRow, 0, len(splits))
	seen := make(map[string]bool)
	var budgetIDs []string
	for _, s := range splits {
		rows = append(rows, splitRow{
			Amount:             s.Amount,
			CategoryID:         s.CategoryID,
			DetailedCategoryID: s.DetailedCategoryID,
			BudgetID:           s.BudgetID,
		})
		if s.BudgetID != "" && !seen[s.BudgetID] {
			seen[s.BudgetID] = true
			budgetIDs = append(budgetIDs, s.BudgetID)
		}
	}
	return rows, budgetIDs
}

type allocationRow struct {
	ID              string  `firestore:"id"`
	BudgetID        string  `firestore:"budget_id"`
	OwnerID         string  `firestore:"owner_id"`
	SourcePeriodID  string  `firestore:"source_period_id"`
	PeriodType      string  `firestore:"period_type"`
	PeriodStart     string  `firestore:"period_start"`
	PeriodEnd       string  `firestore:"period_end"`
	AllocatedAmount float64 `firestore:"allocated_amount"`
	Spent           float64 `firestore:"spent"`
	Remaining       float64 `firestore:"remaining"`
	IsActive        bool    `firestore:"is_active"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (r allocationRow) toDomain() (*domain.PeriodAllocation, error) {
	start, err := decodeDate(r.PeriodStart)
	if err != nil {
		return nil, err
	}
	end, err := decodeDate(r.PeriodEnd)
	if err != nil {
		return nil, err
	}
	return &domain.PeriodAllocation{
		ID:              r.ID,
		BudgetID:        r.BudgetID,
		OwnerID:         r.OwnerID,
		SourcePeriodID:  r.SourcePeriodID,
		PeriodType:      domain.PeriodType(r.PeriodType),
		PeriodStart:     start,
		PeriodEnd:       end,
		AllocatedAmount: r.AllocatedAmount,
		Spent:           r.Spent,
		Remaining:       r.Remaining,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

type periodRow struct {
	ID        string `firestore:"id"`
	Type      string `firestore:"type"`
	StartDate string `firestore:"start_date"`
	EndDate   string `firestore:"end_date"`
	Year      int    `firestore:"year"`
	Index     int    `firestore:"index"`
}

func (r periodRow) toDomain() (domain.SourcePeriod, error) {
	start, err := decodeDate(r.StartDate)
	if err != nil {
		return domain.SourcePeriod{}, err
	}
	end, err := decodeDate(r.EndDate)
	if err != nil {
		return domain.SourcePeriod{}, err
	}
	return domain.SourcePeriod{
		ID:        r.ID,
		Type:      domain.PeriodType(r.Type),
		StartDate: start,
		EndDate:   end,
		Year:      r.Year,
		Index:     r.Index,
	}, nil
}
