package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// BudgetUnassigned is the sentinel budget ID carried by splits that no budget
// currently tracks.
const BudgetUnassigned = "unassigned"

// Budget is a user-defined spending blueprint: a native amount for a native
// period type, tracking a set of categories from a start date onward.
type Budget struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Period      PeriodType `json:"period"`
	Amount      float64    `json:"amount"`
	CategoryIDs []string   `json:"category_ids"`

	StartDate civil.Date `json:"start_date"`
	// EndDate is nil while IsOngoing is true.
	EndDate   *civil.Date `json:"end_date,omitempty"`
	IsOngoing bool        `json:"is_ongoing"`

	// IsSystemCatchAll marks the single "Everything Else" budget per owner.
	// Its amount and categories are not user-editable.
	IsSystemCatchAll bool `json:"is_system_catch_all"`

	// IsActive is flipped to false on soft delete. A deleted budget keeps its
	// period allocations until reassignment deactivates them.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContainsDate reports whether d falls inside the budget's active window:
// on or after the start date and, for non-ongoing budgets, on or before the
// end date.
func (b Budget) ContainsDate(d civil.Date) bool {
	if d.Before(b.StartDate) {
		return false
	}
	if b.IsOngoing || b.EndDate == nil {
		return true
	}
	return !d.After(*b.EndDate)
}

// TracksCategory reports whether the budget tracks the given category ID.
func (b Budget) TracksCategory(categoryID string) bool {
	for _, id := range b.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}
