// Package query holds the pure read-side functions run over a listing snapshot.
// Nothing here mutates its input or performs I/O.
package query

import (
	"slices"
	"strings"

	"classificados/internal/model"
)

// Criteria narrows a search. Empty fields match everything.
type Criteria struct {
	Query    string
	Category string
}

// IsAllCategories reports whether category is one of the sentinels that disable category filtering.
func IsAllCategories(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "", "todos", "all":
		return true
	}
	return false
}

// ListActive returns the active listings of snapshot, newest first.
// Listings created at the same instant keep their insertion order.
func ListActive(snapshot []model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(snapshot))
	for _, l := range snapshot {
		if l.Active {
			out = append(out, l)
		}
	}
	sortNewestFirst(out)
	return out
}

// Search filters the active listings of snapshot by text and category.
// The text query matches title, description or seller case-insensitively.
func Search(snapshot []model.Listing, c Criteria) []model.Listing {
	q := strings.ToLower(strings.TrimSpace(c.Query))
	category := strings.TrimSpace(c.Category)
	anyCategory := IsAllCategories(category)

	out := make([]model.Listing, 0)
	for _, l := range ListActive(snapshot) {
		if q != "" && !matchesText(l, q) {
			continue
		}
		if !anyCategory && l.Category != category {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesText(l model.Listing, lowered string) bool {
	return strings.Contains(strings.ToLower(l.Title), lowered) ||
		strings.Contains(strings.ToLower(l.Description), lowered) ||
		strings.Contains(strings.ToLower(l.Seller), lowered)
}

func sortNewestFirst(ls []model.Listing) {
	slices.SortStableFunc(ls, func(a, b model.Listing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
