package category

import (
	"testing"

	"github.com/dvloznov/budget-engine/internal/domain"
)

func TestTaxonomyMatcher_Match(t *testing.T) {
	matcher := NewTaxonomyMatcher(map[string]string{
		"groceries":   "food",
		"restaurants": "food",
		"fuel":        "transport",
	})

	tests := []struct {
		name        string
		split       domain.TransactionSplit
		categoryIDs []string
		want        bool
	}{
		{
			name:        "primary category match",
			split:       domain.TransactionSplit{CategoryID: "food"},
			categoryIDs: []string{"food", "transport"},
			want:        true,
		},
		{
			name:        "detailed category match",
			split:       domain.TransactionSplit{DetailedCategoryID: "groceries"},
			categoryIDs: []string{"groceries"},
			want:        true,
		},
		{
			name:        "detailed rolls up to tracked parent",
			split:       domain.TransactionSplit{CategoryID: "other", DetailedCategoryID: "restaurants"},
			categoryIDs: []string{"food"},
			want:        true,
		},
		{
			name:        "case and whitespace insensitive",
			split:       domain.TransactionSplit{CategoryID: "  FOOD "},
			categoryIDs: []string{"food"},
			want:        true,
		},
		{
			name:        "no match",
			split:       domain.TransactionSplit{CategoryID: "rent", DetailedCategoryID: "fuel"},
			categoryIDs: []string{"food"},
			want:        false,
		},
		{
			name:        "empty category set never matches",
			split:       domain.TransactionSplit{CategoryID: "food"},
			categoryIDs: nil,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Match(tt.split, tt.categoryIDs); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaxonomyMatcher_NilParents(t *testing.T) {
	matcher := NewTaxonomyMatcher(nil)
	split := domain.TransactionSplit{DetailedCategoryID: "groceries"}
	if matcher.Match(split, []string{"food"}) {
		t.Error("Expected no match without a parent map")
	}
	if !matcher.Match(split, []string{"groceries"}) {
		t.Error("Expected direct detailed match")
	}
}
