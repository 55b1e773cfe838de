// Package catalog implements the browsing rules over a listing set:
// every-token filtering, category derivation and typeahead suggestions.
package catalog

import (
	"strings"

	"github.com/apimarket/marketplace/internal/model"
)

const (
	// VisibleCategoryCount is how many categories show before expanding.
	VisibleCategoryCount = 9
	// MaxSuggestions caps typeahead results.
	MaxSuggestions = 8
)

// Filter keeps listings where every non-blank token is a case-insensitive
// substring of the name, description or category. No tokens keeps all.
func Filter(listings []*model.Listing, tokens []string) []*model.Listing {
	needles := normalize(tokens)
	if len(needles) == 0 {
		return listings
	}

	out := make([]*model.Listing, 0, len(listings))
	for _, l := range listings {
		if matchesAll(l, needles) {
			out = append(out, l)
		}
	}
	return out
}

// Categories returns distinct non-empty categories in encounter order.
func Categories(listings []*model.Listing) []string {
	seen := make(map[string]bool)
	cats := make([]string, 0)
	for _, l := range listings {
		if l.Category == "" || seen[l.Category] {
			continue
		}
		seen[l.Category] = true
		cats = append(cats, l.Category)
	}
	return cats
}

// VisibleCategories trims to the first VisibleCategoryCount unless expanded.
// The bool reports whether more categories exist than are shown collapsed.
func VisibleCategories(all []string, expanded bool) ([]string, bool) {
	more := len(all) > VisibleCategoryCount
	if expanded || !more {
		return all, more
	}
	return all[:VisibleCategoryCount], more
}

// Suggestions returns up to MaxSuggestions listings containing the trimmed
// query. An empty query yields none.
func Suggestions(listings []*model.Listing, query string) []*model.Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*model.Listing{}
	}

	out := make([]*model.Listing, 0, MaxSuggestions)
	for _, l := range listings {
		if matches(l, q) {
			out = append(out, l)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

func normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchesAll(l *model.Listing, needles []string) bool {
	for _, n := range needles {
		if !matches(l, n) {
			return false
		}
	}
	return true
}

func matches(l *model.Listing, needle string) bool {
	return strings.Contains(strings.ToLower(l.Name), needle) ||
		strings.Contains(strings.ToLower(l.Description), needle) ||
		strings.Contains(strings.ToLower(l.Category), needle)
}
