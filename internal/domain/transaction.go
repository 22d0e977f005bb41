package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// TransactionStatus is the review state of a transaction.
type TransactionStatus string

const (
	// TransactionApproved transactions are the only ones that count toward spending.
	TransactionApproved TransactionStatus = "approved"
	// TransactionPending transactions are excluded until approved.
	TransactionPending TransactionStatus = "pending"
)

// TransactionType distinguishes money leaving from money arriving.
type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

// TransactionSplit attributes a portion of a transaction's amount to one
// category and, transitively, one budget. The split amounts of a transaction
// need not sum to the full transaction amount.
type TransactionSplit struct {
	Amount             float64 `json:"amount"`
	CategoryID         string  `json:"category_id"`
	DetailedCategoryID string  `json:"detailed_category_id,omitempty"`
	// BudgetID is BudgetUnassigned when no budget tracks the split.
	BudgetID string `json:"budget_id"`
}

// Transaction is a financial transaction as written by the external ingestion
// pipeline. The engine never creates transactions; it reacts to writes and
// repoints split budget assignments.
type Transaction struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Date        civil.Date         `json:"date"`
	Description string             `json:"description,omitempty"`
	Amount      float64            `json:"amount"`
	Status      TransactionStatus  `json:"status"`
	Type        TransactionType    `json:"type"`
	Splits      []TransactionSplit `json:"splits"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CountsTowardSpending reports whether the transaction contributes to budget
// spending: approved and expense-type.
func (t Transaction) CountsTowardSpending() bool {
	return t.Status == TransactionApproved && t.Type == TransactionExpense
}

// SpendingByBudget sums approved expense split amounts per budget ID, skipping
// unassigned splits. A nil transaction yields an empty map, which makes the
// reconciliation delta treat a missing side as all-zero.
func SpendingByBudget(t *Transaction) map[string]float64 {
	spending := make(map[string]float64)
	if t == nil || !t.CountsTowardSpending() {
		return spending
	}
	for _, split := range t.Splits {
		if split.BudgetID == "" || split.BudgetID == BudgetUnassigned {
			continue
		}
		spending[split.BudgetID] += split.Amount
	}
	return spending
}
