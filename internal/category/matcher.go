package category

import (
	"strings"

	"github.com/dvloznov/budget-engine/internal/domain"
)

// Matcher decides whether a transaction split belongs to a budget's category
// set. The taxonomy itself lives outside the engine; callers inject whichever
// implementation fronts it.
type Matcher interface {
	Match(split domain.TransactionSplit, categoryIDs []string) bool
}

// TaxonomyMatcher matches a split against a budget's categories using the
// split's primary and detailed category IDs, walking detailed categories up
// to their parents so a budget tracking a parent also absorbs its children.
type TaxonomyMatcher struct {
	// parents maps a detailed category ID to its parent category ID.
	parents map[string]string
}

// NewTaxonomyMatcher builds a matcher from a detailed-to-parent category map.
// A nil map is valid: matching then uses the split's IDs directly.
func NewTaxonomyMatcher(parents map[string]string) *TaxonomyMatcher {
	return &TaxonomyMatcher{parents: parents}
}

// Match reports whether the split's category is one the budget tracks.
func (m *TaxonomyMatcher) Match(split domain.TransactionSplit, categoryIDs []string) bool {
	if len(categoryIDs) == 0 {
		return false
	}

	tracked := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		tracked[normalizeID(id)] = true
	}

	if id := normalizeID(split.CategoryID); id != "" && tracked[id] {
		return true
	}
	if id := normalizeID(split.DetailedCategoryID); id != "" {
		if tracked[id] {
			return true
		}
		if parent, ok := m.parents[id]; ok && tracked[normalizeID(parent)] {
			return true
		}
	}
	return false
}

// normalizeID normalizes a category ID for comparison: lowercase, trimmed.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
